// Package chat is the conversation client: it lists the session's
// conversations, loads transcripts and sends messages to the fixed
// interactive conversation.
//
// The backend owns conversation state. After a send the client replaces its
// transcript with whatever the backend returns and never appends locally.
// Requests are neither queued nor deduplicated, so when two sends overlap the
// response that lands last wins.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/MikeSquared-Agency/flowchat/internal/backend"
	"github.com/MikeSquared-Agency/flowchat/internal/hermes"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

// TestChat is the conversation the composer writes to.
const TestChat = "testchat"

// Backend is the subset of the backend API the client uses.
type Backend interface {
	ListChats(ctx context.Context, q backend.ListQuery) ([]backend.ChatSummary, error)
	GetUserInfo(ctx context.Context, userToken string) (*backend.UserInfo, error)
	GetConversation(ctx context.Context, userToken, convToken string) (transcript.Raw, error)
	Ask(ctx context.Context, req backend.FlowRequest) (transcript.Raw, error)
	DeleteConversation(ctx context.Context, userToken, convToken string) error
}

// EventSink receives conversation activity. *hermes.Client satisfies it.
type EventSink interface {
	Publish(subject string, data any) error
}

// Summary is one conversation of the session.
type Summary struct {
	ID           string             `json:"id"`
	MessageCount int                `json:"message_count"`
	Transcript   []transcript.Entry `json:"transcript"`
}

type Option func(*Client)

// WithStrategies replaces the list strategies.
func WithStrategies(s ...ListStrategy) Option {
	return func(c *Client) { c.strategies = s }
}

// WithEvents publishes activity to sink.
func WithEvents(sink EventSink) Option {
	return func(c *Client) { c.events = sink }
}

// WithConversation changes the conversation the composer writes to.
func WithConversation(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.convID = id
		}
	}
}

type Client struct {
	api        Backend
	sessions   session.Store
	strategies []ListStrategy
	events     EventSink
	logger     *slog.Logger
	convID     string

	mu        sync.Mutex
	summaries []Summary
	active    *Summary
	draft     string
	errMsg    string
	inflight  int // sends awaiting a response
}

func New(api Backend, sessions session.Store, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		api:        api,
		sessions:   sessions,
		strategies: DefaultStrategies(),
		logger:     logger,
		convID:     TestChat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConversationID is the conversation SendMessage and ClearConversation act on.
func (c *Client) ConversationID() string {
	return c.convID
}

// token returns the session token or records the missing-credential message.
func (c *Client) token(op string) (string, error) {
	tok := session.Token(c.sessions)
	if tok == "" {
		c.setErr(MsgMissingCredential)
		return "", fmt.Errorf("%s: %w", op, ErrMissingCredential)
	}
	return tok, nil
}

// LoadConversationList replaces the summaries with the backend's list. If
// nothing is selected yet and the interactive conversation is in the list,
// it becomes the selection.
func (c *Client) LoadConversationList(ctx context.Context) error {
	tok, err := c.token("load conversation list")
	if err != nil {
		return err
	}

	c.logger.Debug("loading chats", "session", session.Redact(tok))

	chats, via, err := runStrategies(ctx, c.api, tok, c.strategies)
	if err != nil {
		c.logger.Warn("failed to load chats", "error", err)
		c.setErr(MsgLoadChats)
		return requestFailed("load conversation list", err)
	}
	if via != (ByToken{}).Name() {
		c.logger.Info("chats loaded through fallback", "strategy", via)
	}

	summaries := make([]Summary, 0, len(chats))
	for _, ch := range chats {
		summaries = append(summaries, c.summarize(ch.ConvToken, ch.Conversation))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = summaries
	c.errMsg = ""
	if c.active == nil {
		for i := range summaries {
			if summaries[i].ID == c.convID {
				s := summaries[i]
				c.active = &s
				break
			}
		}
	}
	return nil
}

// LoadTranscript fetches one conversation, makes it the selection and
// overwrites the matching summary. Other summaries are left alone.
func (c *Client) LoadTranscript(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		c.setErr(MsgNoConversation)
		return fmt.Errorf("load transcript: %w", ErrNoConversation)
	}
	tok, err := c.token("load transcript")
	if err != nil {
		return err
	}

	raw, err := c.api.GetConversation(ctx, tok, conversationID)
	if err != nil {
		c.logger.Warn("failed to load conversation", "conversation", conversationID, "error", err)
		c.setErr(describe(MsgLoadConversation, err))
		return requestFailed("load transcript", err)
	}

	s := c.summarize(conversationID, raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(s)
	c.active = &s
	c.errMsg = ""
	return nil
}

// Open loads the list and then the selected transcript, if any.
func (c *Client) Open(ctx context.Context) error {
	if err := c.LoadConversationList(ctx); err != nil {
		return err
	}
	sel, ok := c.Selected()
	if !ok {
		return nil
	}
	return c.LoadTranscript(ctx, sel.ID)
}

// SendMessage posts text to the interactive conversation. Blank text is
// ignored without a request. On success the conversation is replaced by the
// backend's copy and the draft is cleared.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tok, err := c.token("send message")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}()

	raw, err := c.api.Ask(ctx, backend.FlowRequest{
		Question:  text,
		ConvToken: c.convID,
		UserToken: tok,
	})
	if err != nil {
		if code, ok := backend.StatusCode(err); ok && code == http.StatusPaymentRequired {
			c.logger.Warn("plan limit reached", "conversation", c.convID)
			c.setErr(MsgQuotaExceeded)
			c.publish(hermes.SubjectQuotaExceeded, tok, 0)
			return fmt.Errorf("send message: %w", ErrQuotaExceeded)
		}
		c.logger.Warn("failed to send message", "conversation", c.convID, "error", err)
		c.setErr(MsgSend)
		return requestFailed("send message", err)
	}

	s := c.summarize(c.convID, raw)

	c.mu.Lock()
	c.replace(s)
	c.active = &s
	c.draft = ""
	c.errMsg = ""
	c.mu.Unlock()

	c.publish(hermes.SubjectMessageSent, tok, transcript.CountTurns(s.Transcript))
	return nil
}

// SendDraft sends the current draft.
func (c *Client) SendDraft(ctx context.Context) error {
	return c.SendMessage(ctx, c.Draft())
}

// ClearConversation deletes the interactive conversation on the backend and
// empties its local transcript.
func (c *Client) ClearConversation(ctx context.Context) error {
	tok, err := c.token("clear conversation")
	if err != nil {
		return err
	}

	if err := c.api.DeleteConversation(ctx, tok, c.convID); err != nil {
		c.logger.Warn("failed to clear conversation", "conversation", c.convID, "error", err)
		c.setErr(MsgClear)
		return requestFailed("clear conversation", err)
	}

	empty := Summary{ID: c.convID}

	c.mu.Lock()
	for i := range c.summaries {
		if c.summaries[i].ID == c.convID {
			c.summaries[i] = empty
		}
	}
	if c.active != nil && c.active.ID == c.convID {
		c.active = &empty
	}
	c.errMsg = ""
	c.mu.Unlock()

	c.publish(hermes.SubjectConversationCleared, tok, 0)
	return nil
}

// Summaries returns a copy of the conversation list.
func (c *Client) Summaries() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Summary, len(c.summaries))
	copy(out, c.summaries)
	return out
}

// Filter returns the summaries whose id contains query, ignoring case.
func (c *Client) Filter(query string) []Summary {
	q := strings.ToLower(strings.TrimSpace(query))
	all := c.Summaries()
	if q == "" {
		return all
	}
	var out []Summary
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.ID), q) {
			out = append(out, s)
		}
	}
	return out
}

// Selected returns the conversation currently on display.
func (c *Client) Selected() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Summary{}, false
	}
	return *c.active, true
}

// Messages is the transcript of the selected conversation.
func (c *Client) Messages() []transcript.Entry {
	s, ok := c.Selected()
	if !ok {
		return nil
	}
	return s.Transcript
}

// IsComposer reports whether the selection is the conversation that accepts
// new messages.
func (c *Client) IsComposer() bool {
	s, ok := c.Selected()
	return ok && strings.EqualFold(s.ID, c.convID)
}

func (c *Client) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Sending reports whether any send is still waiting for the backend.
func (c *Client) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

func (c *Client) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Client) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Client) setErr(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

// replace swaps the summary with the same id in place. Callers hold c.mu.
func (c *Client) replace(s Summary) {
	for i := range c.summaries {
		if c.summaries[i].ID == s.ID {
			c.summaries[i] = s
		}
	}
}

func (c *Client) summarize(id string, raw transcript.Raw) Summary {
	if turn, ok := transcript.Gap(raw); ok {
		c.logger.Warn("conversation has a gap; later turns are not shown", "conversation", id, "missing_turn", turn)
	}
	return Summary{
		ID:           id,
		MessageCount: len(raw),
		Transcript:   transcript.Decode(raw),
	}
}

func (c *Client) publish(subject, tok string, turns int) {
	if c.events == nil {
		return
	}
	evt := hermes.NewChatEvent(subject, c.convID, session.Redact(tok), turns)
	if err := c.events.Publish(subject, evt); err != nil {
		c.logger.Warn("failed to publish chat event", "subject", subject, "error", err)
	}
}
