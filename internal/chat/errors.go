package chat

import (
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrRequestFailed     = errors.New("request failed")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNoConversation    = errors.New("conversation id required")
)

// User-facing messages stored as the client's current error.
const (
	MsgMissingCredential = "No user token found. Please log in."
	MsgLoadChats         = "Failed to load chats"
	MsgLoadConversation  = "Failed to load conversation"
	MsgNoConversation    = "Please select a conversation."
	MsgSend              = "Failed to send message"
	MsgQuotaExceeded     = "Plan limit reached. Please upgrade your plan to continue."
	MsgClear             = "Error clearing conversation"
)

// requestFailed wraps cause under ErrRequestFailed, keeping the HTTP status
// text in the message when there is one.
func requestFailed(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRequestFailed, cause)
}

// describe renders the user message for a failed request.
func describe(base string, cause error) string {
	if code, ok := backend.StatusCode(cause); ok {
		return fmt.Sprintf("%s (HTTP error status=%d)", base, code)
	}
	return base
}
