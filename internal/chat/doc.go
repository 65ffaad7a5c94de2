// Package chat implements the session registry and message relay at the
// heart of relaychat.
//
// A Relay tracks which connections have joined under which display name,
// keeps the append-only log of broadcast messages, and routes every inbound
// client event to the right set of recipients through an Outbox. A Relay is
// not safe for concurrent use: it is meant to be owned by a single goroutine
// (the server hub) that feeds it events one at a time, so each operation's
// registry mutation and the broadcasts it triggers are observed atomically.
package chat
