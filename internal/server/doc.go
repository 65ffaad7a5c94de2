// Package server exposes the chat relay over HTTP and WebSocket.
//
// A single Hub goroutine owns the chat.Relay; client read pumps feed it raw
// frames and it fans encoded events out to each client's buffered send
// channel. Configuration, origin checks, rate limiting and routing live in
// their own files.
package server
