//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testOwner() string {
	return "integration-" + uuid.New().String()[:8] + "@example.com"
}

func TestIntegration_SaveAndListTranscript(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := testOwner()

	entries := []transcript.Entry{
		{Text: "hi", IsFromUser: true},
		{Text: "hello, how can I help?"},
		{Text: "opening hours?", IsFromUser: true},
		{Text: "9 to 5"},
	}

	id, err := s.SaveTranscript(ctx, owner, "testchat", entries)
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a transcript id")
	}

	archives, err := s.ListArchives(ctx, owner)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %d", len(archives))
	}
	a := archives[0]
	if a.ID != id {
		t.Errorf("expected id %s, got %s", id, a.ID)
	}
	if a.ConvToken != "testchat" {
		t.Errorf("expected conv token testchat, got %s", a.ConvToken)
	}
	if a.Turns != 2 {
		t.Errorf("expected 2 turns, got %d", a.Turns)
	}
	if a.Entries != 4 {
		t.Errorf("expected 4 entries, got %d", a.Entries)
	}

	got, err := s.GetArchive(ctx, id)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("entries mismatch:\n got  %+v\n want %+v", got, entries)
	}
}

func TestIntegration_AnswerOnlyTurnIsCounted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := testOwner()

	entries := []transcript.Entry{
		{Text: "hi", IsFromUser: true},
		{Text: "hello"},
		{Text: "anything else?"},
	}
	if _, err := s.SaveTranscript(ctx, owner, "testchat", entries); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	archives, err := s.ListArchives(ctx, owner)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %d", len(archives))
	}
	if want := transcript.CountTurns(entries); archives[0].Turns != want {
		t.Errorf("expected %d turns, got %d", want, archives[0].Turns)
	}
}

func TestIntegration_EmptyTranscript(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := testOwner()

	id, err := s.SaveTranscript(ctx, owner, "support", nil)
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	archives, err := s.ListArchives(ctx, owner)
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 1 {
		t.Fatalf("expected 1 archive, got %d", len(archives))
	}
	if archives[0].Entries != 0 {
		t.Errorf("expected 0 entries, got %d", archives[0].Entries)
	}

	got, err := s.GetArchive(ctx, id)
	if err != nil {
		t.Fatalf("GetArchive: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestIntegration_GetArchiveNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetArchive(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_ListArchivesUnknownOwner(t *testing.T) {
	s := setupTestStore(t)

	archives, err := s.ListArchives(context.Background(), "nobody-"+uuid.New().String())
	if err != nil {
		t.Fatalf("ListArchives: %v", err)
	}
	if len(archives) != 0 {
		t.Errorf("expected no archives, got %d", len(archives))
	}
}
