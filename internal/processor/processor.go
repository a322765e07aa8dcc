// Package processor archives conversations as chat events arrive. It
// listens for sent-message events from this user's sessions, fetches the
// conversation from the backend and stores a snapshot.
package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowchat/internal/hermes"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

// Conversations fetches a conversation from the backend.
type Conversations interface {
	GetConversation(ctx context.Context, userToken, convToken string) (transcript.Raw, error)
}

// Archive stores transcript snapshots.
type Archive interface {
	SaveTranscript(ctx context.Context, owner, convToken string, entries []transcript.Entry) (uuid.UUID, error)
}

type Processor struct {
	api      Conversations
	sessions session.Store
	archive  Archive
	logger   *slog.Logger

	mu        sync.Mutex
	lastTurns map[string]int // conversation id -> turns in the last snapshot
}

func New(api Conversations, sessions session.Store, archive Archive, logger *slog.Logger) *Processor {
	return &Processor{
		api:       api,
		sessions:  sessions,
		archive:   archive,
		logger:    logger,
		lastTurns: make(map[string]int),
	}
}

// HandleChatEvent is the NATS handler for flowchat.message.sent. Events from
// other sessions, and events that add no turns since the last snapshot, are
// skipped.
func (p *Processor) HandleChatEvent(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.ChatEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse chat event", "subject", subject, "error", err)
		return
	}
	if evt.Type != hermes.SubjectMessageSent {
		p.logger.Debug("ignoring chat event", "type", evt.Type)
		return
	}

	sess, err := p.sessions.Load()
	if err != nil {
		p.logger.Warn("no session for archiving", "error", err)
		return
	}
	if evt.SessionRef != sess.Redacted() {
		p.logger.Debug("event from another session", "session_ref", evt.SessionRef)
		return
	}

	p.mu.Lock()
	last, seen := p.lastTurns[evt.ConversationID]
	p.mu.Unlock()
	if seen && evt.Turns > 0 && evt.Turns <= last {
		p.logger.Debug("conversation unchanged since last snapshot", "conversation", evt.ConversationID, "turns", evt.Turns)
		return
	}

	raw, err := p.api.GetConversation(ctx, sess.Token, evt.ConversationID)
	if err != nil {
		p.logger.Error("failed to fetch conversation", "conversation", evt.ConversationID, "error", err)
		return
	}
	entries := transcript.Decode(raw)

	owner := sess.Email
	if owner == "" {
		owner = sess.Redacted()
	}
	id, err := p.archive.SaveTranscript(ctx, owner, evt.ConversationID, entries)
	if err != nil {
		p.logger.Error("failed to archive conversation", "conversation", evt.ConversationID, "error", err)
		return
	}

	p.mu.Lock()
	p.lastTurns[evt.ConversationID] = transcript.CountTurns(entries)
	p.mu.Unlock()

	p.logger.Info("conversation archived",
		"conversation", evt.ConversationID,
		"archive_id", id,
		"entries", len(entries),
	)
}
