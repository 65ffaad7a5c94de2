// Package server coordinates client registration, frame dispatch, and
// connection cleanup for the relaychat WebSocket system via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Hub manages all WebSocket client connections and owns the chat relay.
// Every relay operation runs on the Run goroutine, so the relay needs no
// locking. The clients map is written only by Run; the mutex lets other
// goroutines read its size.
type Hub struct {
	cfg        Config
	relay      *chat.Relay
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	evictions  []*Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	logger     *slog.Logger

	users    atomic.Int64
	messages atomic.Int64
}

// NewHub creates and initializes a new Hub instance with all necessary channels
// and a relay configured from cfg. The returned Hub is ready to manage
// WebSocket connections once Run is started.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        sanitizeConfig(cfg),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}

	opts := h.cfg.relayOptions()
	opts.Logger = logger.With("component", "relay")
	h.relay = chat.NewRelay(chat.OutboxFunc(h.deliver), opts)
	return h
}

// Register hands a client to the hub. It returns false if the hub is shutting
// down, in which case the caller still owns the connection.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister removes a client and disconnects its chat user. Unregistering a
// client twice is harmless.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Dispatch queues a raw frame from client for the relay. It returns false
// once the hub has stopped.
func (h *Hub) Dispatch(client *Client, frame []byte) bool {
	select {
	case h.inbound <- inboundFrame{client: client, frame: frame}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Stats reports the connection, user and log counts as of the last
// processed event.
func (h *Hub) Stats() HubStats {
	h.mutex.RLock()
	connections := len(h.clients)
	h.mutex.RUnlock()

	return HubStats{
		Connections: connections,
		Users:       int(h.users.Load()),
		Messages:    int(h.messages.Load()),
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and inbound frames. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}

		h.flushEvictions()
		h.publishStats()
	}
}

func (h *Hub) addClient(client *Client) {
	if client == nil {
		h.logger.Warn("Received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info("Client registered",
		"connectionID", client.id,
		"remoteAddr", client.addr,
		"clients", clientCount,
	)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) removeClient(client *Client) {
	if client == nil {
		return
	}

	h.mutex.Lock()
	current, ok := h.clients[client.id]
	if !ok || current != client {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.relay.Disconnect(client.id)
	close(client.send)

	h.logger.Info("Client unregistered",
		"connectionID", client.id,
		"remoteAddr", client.addr,
		"clients", clientCount,
	)
}

func (h *Hub) handleInbound(msg inboundFrame) {
	if current, ok := h.clients[msg.client.id]; !ok || current != msg.client {
		return
	}

	err := h.relay.Dispatch(msg.client.id, msg.frame)
	if err == nil {
		return
	}

	attrs := []any{"connectionID", msg.client.id, "remoteAddr", msg.client.addr, "error", err}
	switch {
	case errors.Is(err, chat.ErrMalformedEnvelope),
		errors.Is(err, chat.ErrMalformedPayload),
		errors.Is(err, chat.ErrUnknownEvent):
		h.logger.Warn("Discarding invalid frame", attrs...)
	default:
		h.logger.Debug("Frame had no effect", attrs...)
	}
}

// deliver implements chat.Outbox. It runs on the Run goroutine and never
// blocks: a client whose buffer is full is queued for eviction.
func (h *Hub) deliver(connID string, frame []byte) error {
	client, ok := h.clients[connID]
	if !ok {
		return errUnknownConnection
	}
	if client.evicted {
		return errClientEvicted
	}

	select {
	case client.send <- frame:
		return nil
	default:
		client.evicted = true
		h.evictions = append(h.evictions, client)
		return errSendBufferFull
	}
}

// flushEvictions removes clients that fell behind. Removal broadcasts to the
// remaining users, which can evict further clients, so the queue is drained
// until empty.
func (h *Hub) flushEvictions() {
	for len(h.evictions) > 0 {
		client := h.evictions[0]
		h.evictions = h.evictions[1:]

		h.logger.Warn("Client removed due to full send buffer",
			"connectionID", client.id,
			"remoteAddr", client.addr,
		)
		h.removeClient(client)
	}
	h.evictions = nil
}

func (h *Hub) publishStats() {
	h.users.Store(int64(h.relay.UserCount()))
	h.messages.Store(int64(h.relay.LogSize()))
}

// shutdownClients closes every client's send channel and connection so the
// pumps can exit.
func (h *Hub) shutdownClients() {
	h.logger.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		client.closeConnection()
	}

	h.logger.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or with ctx's error when ctx ends first.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("Initiating hub shutdown...")

	h.cancel()

	select {
	case <-h.done:
	case <-ctx.Done():
		h.logger.Warn("Hub shutdown timed out waiting for event loop")
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed successfully")
		return nil
	case <-ctx.Done():
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
