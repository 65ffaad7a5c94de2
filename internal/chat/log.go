package chat

// MessageLog is the in-memory, append-only record of broadcast messages.
// Insertion order is delivery order.
type MessageLog struct {
	messages []Message
	limit    int
}

// NewMessageLog creates a log. A positive limit keeps only the newest limit
// messages; zero or less keeps everything for the life of the process.
func NewMessageLog(limit int) *MessageLog {
	if limit < 0 {
		limit = 0
	}
	return &MessageLog{limit: limit}
}

// Append adds msg to the end of the log.
func (l *MessageLog) Append(msg Message) {
	l.messages = append(l.messages, msg)
	if l.limit > 0 && len(l.messages) > l.limit {
		trimmed := make([]Message, l.limit)
		copy(trimmed, l.messages[len(l.messages)-l.limit:])
		l.messages = trimmed
	}
}

// Snapshot returns a copy of the log in insertion order. The result is never
// nil, so it encodes as an empty JSON array.
func (l *MessageLog) Snapshot() []Message {
	snapshot := make([]Message, len(l.messages))
	copy(snapshot, l.messages)
	return snapshot
}

// Len returns the number of retained messages.
func (l *MessageLog) Len() int {
	return len(l.messages)
}
