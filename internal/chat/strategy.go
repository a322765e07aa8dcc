package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
)

// ListStrategy is one way of asking the backend for the session's chats.
// The client tries strategies in order and moves on only when the previous
// one was answered with a non-success HTTP status.
type ListStrategy interface {
	Name() string
	List(ctx context.Context, api Backend, token string) ([]backend.ChatSummary, error)
}

// DefaultStrategies is token lookup followed by the identity fallback that
// older backends need.
func DefaultStrategies() []ListStrategy {
	return []ListStrategy{ByToken{}, ByIdentity{}}
}

// ByToken lists chats with ?usertoken=.
type ByToken struct{}

func (ByToken) Name() string { return "usertoken" }

func (ByToken) List(ctx context.Context, api Backend, token string) ([]backend.ChatSummary, error) {
	return api.ListChats(ctx, backend.ListQuery{UserToken: token})
}

// ByIdentity resolves the user through /get-user-info and lists chats by
// email, or by username when the record has no email.
type ByIdentity struct{}

func (ByIdentity) Name() string { return "identity" }

func (ByIdentity) List(ctx context.Context, api Backend, token string) ([]backend.ChatSummary, error) {
	u, err := api.GetUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	switch {
	case u.Email != "":
		return api.ListChats(ctx, backend.ListQuery{Email: u.Email})
	case u.Username != "":
		return api.ListChats(ctx, backend.ListQuery{Username: u.Username})
	}
	return nil, errors.New("resolve identity: user has no email or username")
}

// runStrategies returns the first successful listing and the name of the
// strategy that produced it. Transport errors stop the chain.
func runStrategies(ctx context.Context, api Backend, token string, strategies []ListStrategy) ([]backend.ChatSummary, string, error) {
	var lastErr error
	for _, s := range strategies {
		chats, err := s.List(ctx, api, token)
		if err == nil {
			return chats, s.Name(), nil
		}
		lastErr = err
		if _, ok := backend.StatusCode(err); !ok {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no list strategies configured")
	}
	return nil, "", lastErr
}
