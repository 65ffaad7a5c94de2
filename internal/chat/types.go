package chat

import (
	"encoding/json"
	"time"
)

// Client to server events.
const (
	EventJoin          = "join"
	EventSendBroadcast = "sendBroadcast"
	EventSendPrivate   = "sendPrivate"
	EventTyping        = "typing"
	EventStopTyping    = "stopTyping"
	EventMarkRead      = "markRead"
)

// Server to client events.
const (
	EventMessageLogSnapshot = "messageLogSnapshot"
	EventNewMessage         = "newMessage"
	EventPrivateMessage     = "privateMessage"
	EventUserTyping         = "userTyping"
	EventUserStopTyping     = "userStopTyping"
	EventPresenceUpdate     = "presenceUpdate"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventReadReceipt        = "readReceipt"
	EventRecipientNotFound  = "recipientNotFound"
	EventJoinRejected       = "joinRejected"
)

// TimestampLayout renders server timestamps as ISO-8601 UTC with millisecond
// precision, e.g. 2024-05-01T09:30:00.000Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// User is a joined chat identity bound to one connection.
type User struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	JoinedAt     string `json:"joinedAt"`
}

// Message is an immutable chat message. Broadcast messages are kept in the
// MessageLog; private ones are only delivered.
type Message struct {
	ID            int64  `json:"id"`
	SenderName    string `json:"senderName"`
	Text          string `json:"text"`
	Timestamp     string `json:"timestamp"`
	IsPrivate     bool   `json:"isPrivate"`
	RecipientName string `json:"recipientName,omitempty"`
}

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendBroadcastPayload is the data of a sendBroadcast event.
type SendBroadcastPayload struct {
	Text string `json:"text"`
}

// SendPrivatePayload is the data of a sendPrivate event.
type SendPrivatePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// MarkReadPayload is the data of a markRead event.
type MarkReadPayload struct {
	MessageID int64 `json:"messageId"`
}

// TypingNotice is broadcast for typing and stopTyping.
type TypingNotice struct {
	DisplayName string `json:"displayName"`
}

// PresenceNotice announces a user joining or leaving.
type PresenceNotice struct {
	DisplayName string `json:"displayName"`
	Timestamp   string `json:"timestamp"`
}

// ReadReceipt is broadcast when a user marks a message as read.
type ReadReceipt struct {
	MessageID int64  `json:"messageId"`
	ReadBy    string `json:"readBy"`
	Timestamp string `json:"timestamp"`
}

// RecipientNotFound tells the sender a private message had nowhere to go.
type RecipientNotFound struct {
	To        string `json:"to"`
	Timestamp string `json:"timestamp"`
}

// JoinRejected tells a connection why its join was refused.
type JoinRejected struct {
	DisplayName string `json:"displayName"`
	Reason      string `json:"reason"`
	Timestamp   string `json:"timestamp"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
