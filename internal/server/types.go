// Package server defines shared types and utility helpers that are reused
// across client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Tyrowin/relaychat/internal/chat"
)

var (
	errUnknownConnection = errors.New("server: unknown connection")
	errClientEvicted     = errors.New("server: client evicted")
	errSendBufferFull    = errors.New("server: send buffer full")
)

// inboundFrame is a raw frame read from a client, queued for the hub.
type inboundFrame struct {
	client *Client
	frame  []byte
}

// HubStats is a point-in-time view of hub occupancy.
type HubStats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Messages    int `json:"messages"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

// isTypingFrame reports whether frame carries a typing or stopTyping event.
// Frames that fail to parse are not typing frames.
func isTypingFrame(frame []byte) bool {
	var env struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		return false
	}
	return env.Event == chat.EventTyping || env.Event == chat.EventStopTyping
}
