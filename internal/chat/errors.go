package chat

import "errors"

// Errors returned by Relay operations. None of them is fatal: the relay
// keeps serving other connections after any of these.
var (
	ErrNotJoined         = errors.New("connection has not joined")
	ErrInvalidName       = errors.New("display name is empty")
	ErrNameTaken         = errors.New("display name already in use")
	ErrEmptyText         = errors.New("message text is empty")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrMalformedEnvelope = errors.New("malformed envelope")
)
