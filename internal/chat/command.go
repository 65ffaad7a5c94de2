package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dispatch decodes one inbound frame from connID and runs the matching
// operation. Errors describe why the frame had no effect; the connection
// remains usable either way.
func (r *Relay) Dispatch(connID string, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch env.Event {
	case EventJoin:
		name, err := decodeDisplayName(env.Data)
		if err != nil {
			return err
		}
		return r.Join(connID, name)

	case EventSendBroadcast:
		var payload SendBroadcastPayload
		if err := decodePayload(env, &payload); err != nil {
			return err
		}
		return r.SendBroadcast(connID, payload.Text)

	case EventSendPrivate:
		var payload SendPrivatePayload
		if err := decodePayload(env, &payload); err != nil {
			return err
		}
		return r.SendPrivate(connID, payload.To, payload.Text)

	case EventTyping:
		return r.Typing(connID)

	case EventStopTyping:
		return r.StopTyping(connID)

	case EventMarkRead:
		id, err := decodeMessageID(env.Data)
		if err != nil {
			return err
		}
		return r.MarkRead(connID, id)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodePayload(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, env.Event, err)
	}
	return nil
}

// decodeDisplayName accepts either a bare JSON string or an object with a
// displayName field.
func decodeDisplayName(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var payload struct {
			DisplayName string `json:"displayName"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return "", fmt.Errorf("%w: join: %v", ErrMalformedPayload, err)
		}
		return payload.DisplayName, nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return "", fmt.Errorf("%w: join: %v", ErrMalformedPayload, err)
	}
	return name, nil
}

// decodeMessageID accepts either {"messageId": n} or a bare number.
func decodeMessageID(data json.RawMessage) (int64, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var payload MarkReadPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return 0, fmt.Errorf("%w: markRead: %v", ErrMalformedPayload, err)
		}
		return payload.MessageID, nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return 0, fmt.Errorf("%w: markRead: %v", ErrMalformedPayload, err)
	}
	return id, nil
}
