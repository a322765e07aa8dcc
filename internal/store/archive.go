package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/flowchat/internal/transcript"
)

var ErrNotFound = errors.New("archive not found")

type ArchiveRow struct {
	ID         uuid.UUID
	Owner      string
	ConvToken  string
	Turns      int
	Entries    int
	ArchivedAt time.Time
}

// SaveTranscript writes one transcript snapshot and its entries in a single
// transaction.
func (s *Store) SaveTranscript(ctx context.Context, owner, convToken string, entries []transcript.Entry) (uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	turns := transcript.CountTurns(entries)

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO archived_transcripts (id, owner, conv_token, turns, archived_at)
		VALUES ($1, $2, $3, $4, now())`,
		id, owner, convToken, turns,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transcript: %w", err)
	}

	batch := &pgx.Batch{}
	for i, e := range entries {
		batch.Queue(`
			INSERT INTO archived_entries (id, transcript_id, position, text, is_from_user)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), id, i, e.Text, e.IsFromUser,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, fmt.Errorf("insert entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListArchives returns the owner's snapshots, newest first.
func (s *Store) ListArchives(ctx context.Context, owner string) ([]ArchiveRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.owner, t.conv_token, t.turns, count(e.id), t.archived_at
		FROM archived_transcripts t
		LEFT JOIN archived_entries e ON e.transcript_id = t.id
		WHERE t.owner = $1
		GROUP BY t.id
		ORDER BY t.archived_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query archives: %w", err)
	}
	defer rows.Close()

	var out []ArchiveRow
	for rows.Next() {
		var a ArchiveRow
		if err := rows.Scan(&a.ID, &a.Owner, &a.ConvToken, &a.Turns, &a.Entries, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetArchive loads the entries of one snapshot in their original order.
func (s *Store) GetArchive(ctx context.Context, id uuid.UUID) ([]transcript.Entry, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM archived_transcripts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup archive: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT text, is_from_user FROM archived_entries
		WHERE transcript_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Entry, error) {
		var e transcript.Entry
		err := row.Scan(&e.Text, &e.IsFromUser)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return entries, nil
}
