// Package store archives conversation transcripts in Postgres so they
// survive a backend-side clear.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS archived_transcripts (
	id          uuid PRIMARY KEY,
	owner       text NOT NULL,
	conv_token  text NOT NULL,
	turns       integer NOT NULL,
	archived_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS archived_transcripts_owner_idx
	ON archived_transcripts (owner, archived_at DESC);
CREATE TABLE IF NOT EXISTS archived_entries (
	id            uuid PRIMARY KEY,
	transcript_id uuid NOT NULL REFERENCES archived_transcripts (id) ON DELETE CASCADE,
	position      integer NOT NULL,
	text          text NOT NULL,
	is_from_user  boolean NOT NULL
);`

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
