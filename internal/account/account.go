// Package account covers signing in and out, registering a new bot owner and
// editing the owner's profile. A successful login or registration leaves a
// session in the injected store for the chat client to use.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
)

var (
	ErrEmailRequired         = errors.New("email required")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNoToken               = errors.New("backend returned no token")
	ErrMissingFields         = errors.New("registration fields missing")
	ErrPlanRequired          = errors.New("plan required")
	ErrDomainRequired        = errors.New("website domain required")
	ErrBotDefinitionRequired = errors.New("bot definition required")
	ErrNotLoggedIn           = errors.New("not logged in")
)

var messages = map[error]string{
	ErrEmailRequired:         "Please enter an email.",
	ErrInvalidCredentials:    "Incorrect email or password.",
	ErrMissingFields:         "All fields are required.",
	ErrPlanRequired:          "Please select a plan to continue.",
	ErrDomainRequired:        "Please enter your website URL before defining your bot.",
	ErrBotDefinitionRequired: "Define the bot before saving the registration.",
	ErrNotLoggedIn:           "No user token found. Please log in.",
}

// Message returns the text to show a user for err.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Something went wrong. Please try again."
}

// Backend is the part of the REST client account operations need.
type Backend interface {
	Authenticate(ctx context.Context, email, password string) error
	GetToken(ctx context.Context, email string) (string, error)
	GetUserInfo(ctx context.Context, userToken string) (*backend.UserInfo, error)
	DefineBot(ctx context.Context, domain string) (string, error)
	SaveRegistration(ctx context.Context, reg backend.Registration) (string, error)
	EditUserInfo(ctx context.Context, userToken string, upd backend.UserUpdate) error
}

type Service struct {
	api      Backend
	sessions session.Store
	ttl      time.Duration
	logger   *slog.Logger
}

func NewService(api Backend, sessions session.Store, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{api: api, sessions: sessions, ttl: ttl, logger: logger}
}

// Login checks the credentials with /auth, fetches the user's token and
// stores a new session.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return session.Session{}, ErrEmailRequired
	}

	if err := s.api.Authenticate(ctx, email, password); err != nil {
		if _, ok := backend.StatusCode(err); ok {
			return session.Session{}, fmt.Errorf("login: %w: %w", ErrInvalidCredentials, err)
		}
		return session.Session{}, fmt.Errorf("login: %w", err)
	}

	token, err := s.api.GetToken(ctx, email)
	if err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	if token == "" {
		return session.Session{}, fmt.Errorf("login: %w", ErrNoToken)
	}

	sess := session.New(token, email, s.ttl)
	if info, err := s.api.GetUserInfo(ctx, token); err != nil {
		s.logger.Debug("user info unavailable after login", "error", err)
	} else {
		sess.FullName = info.FullName
	}

	if err := s.sessions.Save(sess); err != nil {
		return session.Session{}, fmt.Errorf("login: save session: %w", err)
	}
	s.logger.Info("logged in", "email", email, "token", sess.Redacted())
	return sess, nil
}

// DefineBot asks the backend to draft a bot definition from the owner's
// website.
func (s *Service) DefineBot(ctx context.Context, domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", ErrDomainRequired
	}
	def, err := s.api.DefineBot(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("define bot: %w", err)
	}
	return def, nil
}

// Register saves a new account. reg.BotDefinition normally comes from
// DefineBot and may have been edited by the user in between.
func (s *Service) Register(ctx context.Context, reg backend.Registration) (session.Session, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Email == "" || reg.Password == "" || strings.TrimSpace(reg.FullName) == "" || strings.TrimSpace(reg.Phone) == "" {
		return session.Session{}, ErrMissingFields
	}
	if reg.Plan == "" {
		return session.Session{}, ErrPlanRequired
	}
	if strings.TrimSpace(reg.BotDefinition) == "" {
		return session.Session{}, ErrBotDefinitionRequired
	}

	token, err := s.api.SaveRegistration(ctx, reg)
	if err != nil {
		return session.Session{}, fmt.Errorf("register: %w", err)
	}

	sess := session.New(token, reg.Email, s.ttl)
	sess.FullName = reg.FullName
	if err := s.sessions.Save(sess); err != nil {
		return session.Session{}, fmt.Errorf("register: save session: %w", err)
	}
	s.logger.Info("registered", "email", reg.Email, "plan", reg.Plan, "token", sess.Redacted())
	return sess, nil
}

// Profile fetches the signed-in user's record.
func (s *Service) Profile(ctx context.Context) (*backend.UserInfo, error) {
	token := session.Token(s.sessions)
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	info, err := s.api.GetUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return info, nil
}

// UpdateProfile writes the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, upd backend.UserUpdate) error {
	token := session.Token(s.sessions)
	if token == "" {
		return ErrNotLoggedIn
	}
	if err := s.api.EditUserInfo(ctx, token, upd); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	s.logger.Info("profile updated", "token", session.Redact(token))
	return nil
}

// Logout forgets the stored session.
func (s *Service) Logout() error {
	if err := s.sessions.Clear(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
