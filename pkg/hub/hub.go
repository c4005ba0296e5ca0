package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-gimbal/internal/log"
)

type envelope struct {
	client *Client
	msg    Message
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Messages addressed to a single client
	direct chan envelope

	// Client count (read-only access from outside)
	mu sync.RWMutex

	// Callbacks, set before Run
	onMessage func(c *Client, data []byte)
	onLeave   func(c *Client)

	running atomic.Bool
	dropped atomic.Uint64
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan envelope, 16),
	}
}

// OnMessage sets the handler for messages received from clients.
// It runs on the client's read goroutine.
func (h *Hub) OnMessage(fn func(c *Client, data []byte)) {
	h.onMessage = fn
}

// OnLeave sets a callback run when a client disconnects or is dropped.
func (h *Hub) OnLeave(fn func(c *Client)) {
	h.onLeave = fn
}

// Run starts the hub's main loop. Blocks until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.drainUnregister()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "client", client.ID, "total", count)

		case client := <-h.unregister:
			h.remove(client)

		case env := <-h.direct:
			h.mu.RLock()
			_, ok := h.clients[env.client]
			h.mu.RUnlock()
			if ok {
				select {
				case env.client.send <- env.msg:
				default:
					h.remove(env.client)
				}
			}

		case message := <-h.broadcast:
			var slow []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			// Client's buffer is full: they're too slow
			for _, client := range slow {
				h.logger.Warn("dropped slow client", "client", client.ID)
				h.remove(client)
			}
		}
	}
}

// remove unregisters a client once. Only called from Run.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.logger.Info("client disconnected", "client", client.ID, "remaining", count)
	if h.onLeave != nil {
		h.onLeave(client)
	}
}

// drainUnregister keeps read pumps of already-closed clients from blocking
// after Run returns
func (h *Hub) drainUnregister() {
	go func() {
		for range h.unregister {
		}
	}()
}

// Broadcast sends a message to all connected clients.
// The message is dropped if the hub is backed up.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		if n := h.dropped.Add(1); n%100 == 1 {
			h.logger.Warn("broadcast channel full, dropping message", "dropped", n)
		}
	}
}

// SendTo queues a message for one client. Messages for clients that have
// already left are discarded.
func (h *Hub) SendTo(c *Client, msg Message) {
	select {
	case h.direct <- envelope{client: c, msg: msg}:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Name returns the hub name
func (h *Hub) Name() string {
	return h.name
}
