package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Subjects for conversation activity.
const (
	SubjectMessageSent         = "flowchat.message.sent"
	SubjectConversationCleared = "flowchat.conversation.cleared"
	SubjectQuotaExceeded       = "flowchat.quota.exceeded"
)

// ChatEvent is published whenever the conversation client changes a
// conversation or hits the plan limit.
type ChatEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	SessionRef     string    `json:"session_ref"` // redacted session token
	Turns          int       `json:"turns"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewChatEvent stamps an event with a fresh id and the current time.
func NewChatEvent(eventType, conversationID, sessionRef string, turns int) ChatEvent {
	return ChatEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		ConversationID: conversationID,
		SessionRef:     sessionRef,
		Turns:          turns,
		Timestamp:      time.Now().UTC(),
	}
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("flowchat"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if err := c.conn.Flush(); err != nil {
		c.logger.Debug("nats flush on close", "error", err)
	}
	c.conn.Close()
}
