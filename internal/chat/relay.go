package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Default limits applied when Options leaves them unset.
const (
	DefaultMaxNameLength = 20
	DefaultMaxTextLength = 1000
)

// Outbox delivers an encoded frame to one connection. Deliver must not block;
// a returned error means this frame was lost for that connection only.
type Outbox interface {
	Deliver(connID string, frame []byte) error
}

// OutboxFunc adapts a function to the Outbox interface.
type OutboxFunc func(connID string, frame []byte) error

// Deliver calls f(connID, frame).
func (f OutboxFunc) Deliver(connID string, frame []byte) error {
	return f(connID, frame)
}

// Options tunes a Relay.
type Options struct {
	// MaxNameLength bounds display names, in runes.
	MaxNameLength int
	// MaxTextLength bounds message text, in runes.
	MaxTextLength int
	// MaxLogSize caps the message log. Zero keeps every broadcast message.
	MaxLogSize int
	// RequireUniqueNames rejects a join whose name is already in use.
	RequireUniqueNames bool
	// NotifyUnknownRecipient sends recipientNotFound back to the sender of
	// a private message whose target is not joined.
	NotifyUnknownRecipient bool
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Relay is the session registry and message relay.
type Relay struct {
	registry *Registry
	log      *MessageLog
	outbox   Outbox
	opts     Options
	now      func() time.Time
	logger   *slog.Logger
	lastID   int64
}

// NewRelay creates a Relay that delivers through outbox.
func NewRelay(outbox Outbox, opts Options) *Relay {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = DefaultMaxNameLength
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		registry: NewRegistry(),
		log:      NewMessageLog(opts.MaxLogSize),
		outbox:   outbox,
		opts:     opts,
		now:      now,
		logger:   logger,
	}
}

// Join registers displayName for connID, sends the joiner the message log
// as it stands now, and announces the new presence list and the join to
// every joined connection, the joiner included.
func (r *Relay) Join(connID, displayName string) error {
	name := strings.TrimSpace(truncateRunes(strings.TrimSpace(displayName), r.opts.MaxNameLength))
	if name == "" {
		return ErrInvalidName
	}

	timestamp := r.timestamp()
	if r.opts.RequireUniqueNames && r.registry.NameTaken(name, connID) {
		r.unicast(connID, EventJoinRejected, JoinRejected{
			DisplayName: name,
			Reason:      ErrNameTaken.Error(),
			Timestamp:   timestamp,
		})
		return fmt.Errorf("join %q: %w", name, ErrNameTaken)
	}

	r.registry.Put(User{
		ConnectionID: connID,
		DisplayName:  name,
		JoinedAt:     timestamp,
	})

	r.unicast(connID, EventMessageLogSnapshot, r.log.Snapshot())
	r.broadcast(EventPresenceUpdate, r.registry.Users(), "")
	r.broadcast(EventUserJoined, PresenceNotice{DisplayName: name, Timestamp: timestamp}, "")

	r.logger.Info("User joined", "connectionID", connID, "displayName", name, "users", r.registry.Len())
	return nil
}

// SendBroadcast appends a new public message to the log and delivers it to
// every joined connection, the sender included.
func (r *Relay) SendBroadcast(connID, text string) error {
	sender, ok := r.registry.Get(connID)
	if !ok {
		return ErrNotJoined
	}
	text, err := r.normalizeText(text)
	if err != nil {
		return err
	}

	msg := Message{
		ID:         r.nextID(),
		SenderName: sender.DisplayName,
		Text:       text,
		Timestamp:  r.timestamp(),
	}
	r.log.Append(msg)
	r.broadcast(EventNewMessage, msg, "")

	r.logger.Debug("Broadcast message relayed", "messageID", msg.ID, "sender", sender.DisplayName)
	return nil
}

// SendPrivate delivers a message to the first joined user named to, and a
// copy back to the sender. Private messages never enter the log.
func (r *Relay) SendPrivate(connID, to, text string) error {
	sender, ok := r.registry.Get(connID)
	if !ok {
		return ErrNotJoined
	}
	text, err := r.normalizeText(text)
	if err != nil {
		return err
	}

	recipient, found := r.registry.FindByName(to)
	if !found {
		if r.opts.NotifyUnknownRecipient {
			r.unicast(connID, EventRecipientNotFound, RecipientNotFound{To: to, Timestamp: r.timestamp()})
		}
		return fmt.Errorf("private message to %q: %w", to, ErrRecipientNotFound)
	}

	msg := Message{
		ID:            r.nextID(),
		SenderName:    sender.DisplayName,
		Text:          text,
		Timestamp:     r.timestamp(),
		IsPrivate:     true,
		RecipientName: recipient.DisplayName,
	}
	frame, err := encodeFrame(EventPrivateMessage, msg)
	if err != nil {
		return err
	}
	r.deliver(recipient.ConnectionID, frame)
	r.deliver(connID, frame)

	r.logger.Debug("Private message relayed", "messageID", msg.ID, "sender", sender.DisplayName, "recipient", recipient.DisplayName)
	return nil
}

// Typing tells every other joined connection that connID started typing.
func (r *Relay) Typing(connID string) error {
	return r.typingNotice(connID, EventUserTyping)
}

// StopTyping tells every other joined connection that connID stopped typing.
func (r *Relay) StopTyping(connID string) error {
	return r.typingNotice(connID, EventUserStopTyping)
}

func (r *Relay) typingNotice(connID, event string) error {
	user, ok := r.registry.Get(connID)
	if !ok {
		return ErrNotJoined
	}
	r.broadcast(event, TypingNotice{DisplayName: user.DisplayName}, connID)
	return nil
}

// MarkRead broadcasts a read receipt for messageID to every joined
// connection. The id is not checked against the log and repeated receipts
// are all relayed.
func (r *Relay) MarkRead(connID string, messageID int64) error {
	user, ok := r.registry.Get(connID)
	if !ok {
		return ErrNotJoined
	}
	r.broadcast(EventReadReceipt, ReadReceipt{
		MessageID: messageID,
		ReadBy:    user.DisplayName,
		Timestamp: r.timestamp(),
	}, "")
	return nil
}

// Disconnect removes the user bound to connID, if any, and announces the
// departure and the new presence list to the remaining connections.
// Disconnecting a connection that never joined does nothing.
func (r *Relay) Disconnect(connID string) {
	user, ok := r.registry.Remove(connID)
	if !ok {
		return
	}

	r.broadcast(EventUserLeft, PresenceNotice{DisplayName: user.DisplayName, Timestamp: r.timestamp()}, "")
	r.broadcast(EventPresenceUpdate, r.registry.Users(), "")

	r.logger.Info("User left", "connectionID", connID, "displayName", user.DisplayName, "users", r.registry.Len())
}

// Users returns the joined users in join order.
func (r *Relay) Users() []User {
	return r.registry.Users()
}

// Messages returns a copy of the broadcast message log.
func (r *Relay) Messages() []Message {
	return r.log.Snapshot()
}

// UserCount returns the number of joined users.
func (r *Relay) UserCount() int {
	return r.registry.Len()
}

// LogSize returns the number of messages in the log.
func (r *Relay) LogSize() int {
	return r.log.Len()
}

func (r *Relay) normalizeText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return truncateRunes(text, r.opts.MaxTextLength), nil
}

func (r *Relay) nextID() int64 {
	r.lastID++
	return r.lastID
}

func (r *Relay) timestamp() string {
	return formatTimestamp(r.now())
}

// broadcast encodes the event once and delivers it to every joined
// connection except skip.
func (r *Relay) broadcast(event string, data any, skip string) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		r.logger.Error("Failed to encode broadcast", "event", event, "error", err)
		return
	}
	for _, id := range r.registry.ConnectionIDs() {
		if id == skip {
			continue
		}
		r.deliver(id, frame)
	}
}

func (r *Relay) unicast(connID, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		r.logger.Error("Failed to encode unicast", "event", event, "error", err)
		return
	}
	r.deliver(connID, frame)
}

func (r *Relay) deliver(connID string, frame []byte) {
	if err := r.outbox.Deliver(connID, frame); err != nil {
		r.logger.Debug("Delivery failed", "connectionID", connID, "error", err)
	}
}

func encodeFrame(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return frame, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
