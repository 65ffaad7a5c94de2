package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUnstartedServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(NewConfig(), discardLogger())
	require.NoError(t, err)
	return srv
}

// TestNewRequiresConfig verifies that a Server cannot be built without config.
func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, errConfigRequired)
}

// TestHealthHandler checks the JSON health report on both health routes.
func TestHealthHandler(t *testing.T) {
	srv := newUnstartedServer(t)
	mux := srv.SetupRoutes()

	for _, path := range []string{"/", "/health"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, HealthResponse{Status: "ok"}, body)
		})
	}
}

// TestWebSocketHandlerMethodValidation ensures only GET reaches the upgrader.
func TestWebSocketHandlerMethodValidation(t *testing.T) {
	srv := newUnstartedServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.WebSocketHandler(rec, httptest.NewRequest(method, "/ws", nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

// TestWebSocketHandlerGETWithoutUpgrade verifies that a plain GET is rejected
// by the upgrader.
func TestWebSocketHandlerGETWithoutUpgrade(t *testing.T) {
	srv := newUnstartedServer(t)

	rec := httptest.NewRecorder()
	srv.WebSocketHandler(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestCreateServer checks the production timeouts.
func TestCreateServer(t *testing.T) {
	handler := http.NewServeMux()
	httpServer := CreateServer(":9999", handler)

	assert.Equal(t, ":9999", httpServer.Addr)
	assert.Equal(t, handler, httpServer.Handler)
	assert.Equal(t, 15*time.Second, httpServer.ReadTimeout)
	assert.Equal(t, 15*time.Second, httpServer.WriteTimeout)
	assert.Equal(t, 60*time.Second, httpServer.IdleTimeout)
}

// TestServerConfigIsSanitized verifies that New applies defaults.
func TestServerConfigIsSanitized(t *testing.T) {
	srv, err := New(&Config{Port: ":1234"}, discardLogger())
	require.NoError(t, err)

	cfg := srv.Config()
	assert.Equal(t, ":1234", cfg.Port)
	assert.Equal(t, int64(16384), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.NotNil(t, srv.Hub())
}
