// Package admin wraps the backend's admin endpoints: listing accounts,
// inspecting one account's conversation history and deleting accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
)

var ErrNotLoggedIn = errors.New("not logged in")

// Backend is the part of the REST client the admin views need.
type Backend interface {
	AdminUsers(ctx context.Context, userToken string) ([]backend.Row, error)
	AdminUser(ctx context.Context, userToken, id string) (*backend.AdminUserDetail, error)
	AdminDeleteUser(ctx context.Context, userToken, id string) error
}

type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
	Token     string
}

type Exchange struct {
	ID        string
	Question  string
	Answer    string
	CreatedAt time.Time
}

// Conversation is every exchange sharing one convtoken, oldest first.
type Conversation struct {
	ConvToken string
	Started   time.Time
	Exchanges []Exchange
}

type Detail struct {
	User          map[string]any
	Token         string
	Conversations []Conversation
}

type Service struct {
	api      Backend
	sessions session.Store
	logger   *slog.Logger

	mu     sync.Mutex
	tokens map[string]string
}

func NewService(api Backend, sessions session.Store, logger *slog.Logger) *Service {
	return &Service{api: api, sessions: sessions, logger: logger}
}

func (s *Service) token() (string, error) {
	tok := session.Token(s.sessions)
	if tok == "" {
		return "", ErrNotLoggedIn
	}
	return tok, nil
}

// Users lists every account and remembers each account's token for later
// detail lookups.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	rows, err := s.api.AdminUsers(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]User, 0, len(rows))
	tokens := make(map[string]string, len(rows))
	for _, row := range rows {
		u := User{
			ID:        cell(row, 0),
			Username:  cell(row, 1),
			CreatedAt: parseTime(cell(row, 2)),
			Token:     rowToken(row),
		}
		if u.ID != "" && u.Token != "" {
			tokens[u.ID] = u.Token
		}
		users = append(users, u)
	}
	if len(tokens) == 0 && len(users) > 0 {
		s.logger.Warn("no tokens found in user list", "users", len(users))
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return users, nil
}

// User fetches one account with its conversations grouped by convtoken,
// most recently started first. A missing token is filled from the list
// loaded by Users.
func (s *Service) User(ctx context.Context, id string) (*Detail, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	d, err := s.api.AdminUser(ctx, tok, id)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	detail := &Detail{User: d.User, Conversations: Group(d.Conversations)}
	if detail.User == nil {
		detail.User = map[string]any{}
	}
	for _, key := range []string{"usertoken", "token", "userToken"} {
		if v, ok := detail.User[key].(string); ok && v != "" {
			detail.Token = v
			break
		}
	}
	if detail.Token == "" {
		detail.Token = s.knownToken(ctx, id)
		if detail.Token != "" {
			detail.User["token"] = detail.Token
		}
	}
	return detail, nil
}

func (s *Service) knownToken(ctx context.Context, id string) string {
	s.mu.Lock()
	loaded := s.tokens != nil
	s.mu.Unlock()
	if !loaded {
		if _, err := s.Users(ctx); err != nil {
			s.logger.Debug("user list unavailable for token lookup", "error", err)
			return ""
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[id]
}

// DeleteUser removes an account and returns the refreshed user list.
func (s *Service) DeleteUser(ctx context.Context, id string) ([]User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	if err := s.api.AdminDeleteUser(ctx, tok, id); err != nil {
		return nil, fmt.Errorf("delete user %s: %w", id, err)
	}
	s.logger.Info("user deleted", "id", id)
	return s.Users(ctx)
}

// Group collects conversation rows by convtoken. Groups are ordered by the
// date of their first row, newest first; undated groups sort last.
func Group(rows []backend.Row) []Conversation {
	index := map[string]int{}
	var convs []Conversation
	for _, row := range rows {
		ct := cell(row, 1)
		i, ok := index[ct]
		if !ok {
			i = len(convs)
			index[ct] = i
			convs = append(convs, Conversation{ConvToken: ct, Started: parseTime(cell(row, 5))})
		}
		convs[i].Exchanges = append(convs[i].Exchanges, Exchange{
			ID:        cell(row, 0),
			Question:  cell(row, 3),
			Answer:    cell(row, 4),
			CreatedAt: parseTime(cell(row, 5)),
		})
	}

	sort.SliceStable(convs, func(a, b int) bool {
		ta, tb := convs[a].Started, convs[b].Started
		if ta.IsZero() || tb.IsZero() {
			return !ta.IsZero() && tb.IsZero()
		}
		return ta.After(tb)
	})
	return convs
}

// rowToken reads the token column of a user row. Older backends append an
// extra column, so index 4 is tried when index 3 is empty.
func rowToken(row backend.Row) string {
	if t := cell(row, 3); t != "" {
		return t
	}
	return cell(row, 4)
}

func cell(row backend.Row, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	switch v := row[i].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
