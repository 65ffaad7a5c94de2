package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/chat"
)

const readTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startTestHub runs a hub for clients without sockets, so tests can read
// frames straight from each client's send channel.
func startTestHub(t *testing.T, customize func(cfg *Config)) *Hub {
	t.Helper()

	cfg := NewConfig()
	if customize != nil {
		customize(cfg)
	}

	hub := NewHub(*cfg, discardLogger())
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub
}

func registerClient(t *testing.T, hub *Hub, addr string) *Client {
	t.Helper()
	client := NewClient(nil, hub, addr)
	require.True(t, hub.Register(client))
	return client
}

func dispatch(t *testing.T, hub *Hub, client *Client, event string, data any) {
	t.Helper()
	require.True(t, hub.Dispatch(client, mustFrame(t, event, data)))
}

func mustFrame(t *testing.T, event string, data any) []byte {
	t.Helper()

	env := chat.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}

	frame, err := json.Marshal(env)
	require.NoError(t, err)
	return frame
}

// nextFrame reads the next queued frame for a socketless client.
func nextFrame(t *testing.T, client *Client) chat.Envelope {
	t.Helper()

	select {
	case frame, ok := <-client.GetSendChan():
		require.True(t, ok, "send channel closed")
		var env chat.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(readTimeout):
		t.Fatalf("timed out waiting for frame to %s", client.addr)
		return chat.Envelope{}
	}
}

func nextEvents(t *testing.T, client *Client, n int) []string {
	t.Helper()
	events := make([]string, 0, n)
	for range n {
		events = append(events, nextFrame(t, client).Event)
	}
	return events
}

// expectNoFrame asserts that nothing is queued for client within timeout.
func expectNoFrame(t *testing.T, client *Client, timeout time.Duration) {
	t.Helper()

	select {
	case frame, ok := <-client.GetSendChan():
		if ok {
			t.Fatalf("expected no frame for %s, got %s", client.addr, frame)
		}
	case <-time.After(timeout):
	}
}

// expectClosed drains client's queue and asserts the hub closed it.
func expectClosed(t *testing.T, client *Client) {
	t.Helper()

	deadline := time.After(readTimeout)
	for {
		select {
		case _, ok := <-client.GetSendChan():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("send channel for %s was not closed", client.addr)
		}
	}
}

func decodeData[T any](t *testing.T, env chat.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), "decode %s", env.Event)
	return v
}

// newTestServer serves the full route set on an httptest server that
// accepts its own URL as an origin.
func newTestServer(t *testing.T, customize func(cfg *Config)) (*Server, *httptest.Server) {
	t.Helper()

	ts := httptest.NewUnstartedServer(nil)

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"http://" + ts.Listener.Addr().String()}
	if customize != nil {
		customize(cfg)
	}

	srv, err := New(cfg, discardLogger())
	require.NoError(t, err)
	ts.Config.Handler = srv.SetupRoutes()
	srv.StartHub()
	ts.Start()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Hub().Shutdown(ctx)
	})
	t.Cleanup(ts.Close)
	return srv, ts
}

func buildWebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(baseURL, "http"), "unexpected base URL %q", baseURL)
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
}

func newOriginHeader(origin string) http.Header {
	header := http.Header{}
	header.Set("Origin", origin)
	return header
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(buildWebSocketURL(t, ts.URL), newOriginHeader(ts.URL))
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, mustFrame(t, event, data)))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) chat.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var env chat.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

// readUntil skips frames until one carrying event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) chat.Envelope {
	t.Helper()

	for {
		env := readEnvelope(t, conn)
		if env.Event == event {
			return env
		}
	}
}

// expectNoMessage asserts that no frame arrives on conn within timeout.
func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no message, got %s", frame)
	}
}
