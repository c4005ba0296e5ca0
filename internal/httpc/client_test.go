package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"echo": in["enabled"]})
	}))
	defer srv.Close()

	var out map[string]bool
	err := DoJSON(context.Background(), nil, http.MethodPost, srv.URL, map[string]bool{"enabled": true}, &out)
	require.NoError(t, err)
	assert.True(t, out["echo"])
}

func TestDoJSON_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error": "gimbal: laser busy"}`))
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), NewClient(DefaultTimeout), http.MethodPost, srv.URL, nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)
	assert.Equal(t, "gimbal: laser busy", se.Message)
	assert.Equal(t, "http 409: gimbal: laser busy", err.Error())
}

func TestDoJSON_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), nil, http.MethodGet, srv.URL, nil, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "nope", se.Message)
}

func TestDoJSON_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]interface{}
	assert.Error(t, DoJSON(context.Background(), nil, http.MethodGet, srv.URL, nil, &out))
}

func TestDoJSON_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DoJSON(ctx, nil, http.MethodGet, "http://127.0.0.1:1", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
