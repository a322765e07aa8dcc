package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowchat/internal/hermes"
	"github.com/MikeSquared-Agency/flowchat/internal/session"
	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

type fakeConversations struct {
	raw   transcript.Raw
	err   error
	calls int
}

func (f *fakeConversations) GetConversation(ctx context.Context, userToken, convToken string) (transcript.Raw, error) {
	f.calls++
	return f.raw, f.err
}

type savedSnapshot struct {
	owner, conv string
	entries     []transcript.Entry
}

type fakeArchive struct {
	mu    sync.Mutex
	saved []savedSnapshot
	err   error
}

func (f *fakeArchive) SaveTranscript(ctx context.Context, owner, convToken string, entries []transcript.Entry) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.saved = append(f.saved, savedSnapshot{owner, convToken, entries})
	return uuid.New(), nil
}

const token = "user-token-123"

func setup(t *testing.T, raw transcript.Raw) (*Processor, *fakeConversations, *fakeArchive) {
	t.Helper()
	st := session.NewMemoryStore()
	if err := st.Save(session.New(token, "dana@example.com", 0)); err != nil {
		t.Fatalf("save session: %v", err)
	}
	api := &fakeConversations{raw: raw}
	archive := &fakeArchive{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api, st, archive, logger), api, archive
}

func event(t *testing.T, typ, sessionRef string, turns int) []byte {
	t.Helper()
	data, err := json.Marshal(hermes.NewChatEvent(typ, "testchat", sessionRef, turns))
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestHandleChatEvent_Archives(t *testing.T) {
	raw := transcript.Raw{"question1": "hi", "answer1": "hello"}
	p, api, archive := setup(t, raw)

	p.HandleChatEvent(hermes.SubjectMessageSent, event(t, hermes.SubjectMessageSent, session.Redact(token), 1))

	if api.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", api.calls)
	}
	if len(archive.saved) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(archive.saved))
	}
	got := archive.saved[0]
	if got.owner != "dana@example.com" {
		t.Errorf("expected owner dana@example.com, got %q", got.owner)
	}
	if got.conv != "testchat" {
		t.Errorf("expected conversation testchat, got %q", got.conv)
	}
	if !reflect.DeepEqual(got.entries, transcript.Decode(raw)) {
		t.Errorf("unexpected entries: %+v", got.entries)
	}
}

func TestHandleChatEvent_SkipsUnchanged(t *testing.T) {
	p, api, archive := setup(t, transcript.Raw{"question1": "hi", "answer1": "hello"})
	data := event(t, hermes.SubjectMessageSent, session.Redact(token), 1)

	p.HandleChatEvent(hermes.SubjectMessageSent, data)
	p.HandleChatEvent(hermes.SubjectMessageSent, data)

	if api.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", api.calls)
	}
	if len(archive.saved) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(archive.saved))
	}
}

func TestHandleChatEvent_AnswerOnlyTurn(t *testing.T) {
	// The second turn has no question. It still counts as a turn, so the
	// event for it is a duplicate once the snapshot is stored.
	raw := transcript.Raw{"question1": "hi", "answer1": "hello", "answer2": "anything else?"}
	p, api, archive := setup(t, raw)
	turns := transcript.CountTurns(transcript.Decode(raw))
	data := event(t, hermes.SubjectMessageSent, session.Redact(token), turns)

	p.HandleChatEvent(hermes.SubjectMessageSent, data)
	p.HandleChatEvent(hermes.SubjectMessageSent, data)

	if api.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", api.calls)
	}
	if len(archive.saved) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(archive.saved))
	}
	if got := transcript.CountTurns(archive.saved[0].entries); got != turns {
		t.Errorf("stored snapshot has %d turns, event reported %d", got, turns)
	}
}

func TestHandleChatEvent_OtherSession(t *testing.T) {
	p, api, archive := setup(t, nil)

	p.HandleChatEvent(hermes.SubjectMessageSent, event(t, hermes.SubjectMessageSent, "someone***", 1))

	if api.calls != 0 {
		t.Errorf("expected no fetch, got %d", api.calls)
	}
	if len(archive.saved) != 0 {
		t.Errorf("expected no snapshot, got %d", len(archive.saved))
	}
}

func TestHandleChatEvent_IgnoresOtherTypes(t *testing.T) {
	p, api, _ := setup(t, nil)

	p.HandleChatEvent(hermes.SubjectConversationCleared, event(t, hermes.SubjectConversationCleared, session.Redact(token), 0))
	p.HandleChatEvent(hermes.SubjectQuotaExceeded, event(t, hermes.SubjectQuotaExceeded, session.Redact(token), 0))

	if api.calls != 0 {
		t.Errorf("expected no fetch, got %d", api.calls)
	}
}

func TestHandleChatEvent_MalformedPayload(t *testing.T) {
	p, api, _ := setup(t, nil)

	p.HandleChatEvent(hermes.SubjectMessageSent, []byte("not json"))
	if api.calls != 0 {
		t.Errorf("expected no fetch, got %d", api.calls)
	}
}

func TestHandleChatEvent_FetchError(t *testing.T) {
	p, api, archive := setup(t, nil)
	api.err = errors.New("backend down")

	p.HandleChatEvent(hermes.SubjectMessageSent, event(t, hermes.SubjectMessageSent, session.Redact(token), 1))
	if len(archive.saved) != 0 {
		t.Errorf("expected no snapshot, got %d", len(archive.saved))
	}
}

func TestHandleChatEvent_RetriesAfterArchiveError(t *testing.T) {
	p, api, archive := setup(t, transcript.Raw{"question1": "hi"})
	archive.err = errors.New("db down")
	data := event(t, hermes.SubjectMessageSent, session.Redact(token), 1)

	p.HandleChatEvent(hermes.SubjectMessageSent, data)
	archive.err = nil
	p.HandleChatEvent(hermes.SubjectMessageSent, data)

	if api.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", api.calls)
	}
	if len(archive.saved) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(archive.saved))
	}
}
