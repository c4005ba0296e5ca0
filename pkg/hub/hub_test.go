package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory websocket connection
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []Message
	opcodes []int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return wsTextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opcodes = append(c.opcodes, messageType)
	if messageType == wsTextMessage || messageType == wsBinaryMessage {
		mt := JSONMessage
		if messageType == wsBinaryMessage {
			mt = BinaryMessage
		}
		c.written = append(c.written, Message{Type: mt, Data: append([]byte(nil), data...)})
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) Close() error                      { c.once.Do(func() { close(c.closed) }); return nil }
func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.written...)
}

func startHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(cancel)
	return cancel
}

func connect(t *testing.T, h *Hub) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()
	return c, conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := New("status")
	startHub(t, h)

	_, a := connect(t, h)
	_, b := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]int{"pan": 135}))
	h.BroadcastBinary([]byte{0xff, 0xd8})

	for _, conn := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, time.Millisecond)
		msgs := conn.messages()
		assert.Equal(t, Message{Type: JSONMessage, Data: []byte(`{"pan":135}`)}, msgs[0])
		assert.Equal(t, Message{Type: BinaryMessage, Data: []byte{0xff, 0xd8}}, msgs[1])
	}
}

func TestHub_OnMessageAndOnLeave(t *testing.T) {
	h := New("joystick")

	var mu sync.Mutex
	var got []string
	left := make(chan string, 1)
	h.OnMessage(func(c *Client, data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
	})
	h.OnLeave(func(c *Client) { left <- c.ID })
	startHub(t, h)

	client, conn := connect(t, h)
	assert.NotEmpty(t, client.ID)
	conn.inbound <- []byte(`{"x":0.5}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, time.Millisecond)

	conn.Close()
	select {
	case id := <-left:
		assert.Equal(t, client.ID, id)
	case <-time.After(time.Second):
		t.Fatal("OnLeave not called")
	}
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("camera")
	cancel := startHub(t, h)

	_, conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Eventually(t, conn.isClosed, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_BroadcastWithoutRunDrops(t *testing.T) {
	h := New("idle")
	for i := 0; i < 100; i++ {
		h.BroadcastBinary([]byte{1})
	}
	assert.Equal(t, uint64(100-cap(h.broadcast)), h.dropped.Load())
}

func TestMessage_Opcode(t *testing.T) {
	assert.Equal(t, wsTextMessage, NewJSONMessage(nil).opcode())
	assert.Equal(t, wsBinaryMessage, NewBinaryMessage(nil).opcode())
}

func TestHub_SendTo(t *testing.T) {
	h := New("joystick")
	startHub(t, h)

	a, connA := connect(t, h)
	_, connB := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, time.Millisecond)

	h.SendTo(a, NewJSONMessage([]byte(`{"type":"error"}`)))
	require.Eventually(t, func() bool { return len(connA.messages()) == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, connB.messages())

	// Departed clients are skipped without panicking
	connA.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)
	h.SendTo(a, NewJSONMessage([]byte(`{}`)))
}
