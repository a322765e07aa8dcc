package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MikeSquared-Agency/flowchat/internal/account"
	"github.com/MikeSquared-Agency/flowchat/internal/admin"
	"github.com/MikeSquared-Agency/flowchat/internal/backend"
	"github.com/MikeSquared-Agency/flowchat/internal/chat"
	"github.com/MikeSquared-Agency/flowchat/internal/config"
	"github.com/MikeSquared-Agency/flowchat/internal/hermes"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
	"github.com/MikeSquared-Agency/flowchat/internal/store"
)

// app holds the wired components shared by every subcommand.
type app struct {
	ctx      context.Context
	cfg      config.Config
	logger   *slog.Logger
	api      *backend.Client
	sessions *session.FileStore
	chats    *chat.Client
	accounts *account.Service
	admins   *admin.Service
	events   *hermes.Client
}

func newApp(ctx context.Context, cfg config.Config) *app {
	logger := slog.Default()
	api := backend.NewClient(cfg.APIURL, logger)
	sessions := session.NewFileStore(cfg.SessionFile)

	a := &app{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		api:      api,
		sessions: sessions,
		accounts: account.NewService(api, sessions, cfg.SessionTTL(), logger),
		admins:   admin.NewService(api, sessions, logger),
	}

	opts := []chat.Option{chat.WithConversation(cfg.ConversationID)}
	if cfg.NatsURL != "" {
		events, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Warn("chat events disabled", "error", err)
		} else {
			a.events = events
			opts = append(opts, chat.WithEvents(events))
			logger.Debug("NATS connected", "url", cfg.NatsURL)
		}
	}
	a.chats = chat.New(api, sessions, logger, opts...)
	return a
}

func (a *app) close() {
	if a.events != nil {
		a.events.Close()
		a.events = nil
	}
}

// openStore connects to the archive database and ensures its tables exist.
func (a *app) openStore() (*store.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the archive")
	}
	db, err := store.New(a.ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(a.ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// owner names the signed-in user for archive rows.
func (a *app) owner() (string, error) {
	s, err := a.sessions.Load()
	if err != nil {
		return "", errors.New(chat.MsgMissingCredential)
	}
	if s.Email != "" {
		return s.Email, nil
	}
	return s.Redacted(), nil
}

// chatErr prefers the client's user-facing message over the wrapped error.
func (a *app) chatErr(err error) error {
	if err == nil {
		return nil
	}
	if msg := a.chats.Err(); msg != "" {
		a.logger.Debug("chat operation failed", "error", err)
		return errors.New(msg)
	}
	return err
}
