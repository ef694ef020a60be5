// Package postgres provides the PostgreSQL-backed implementation of the
// interview record store.
//
// A single [pgxpool.Pool] backs all operations. [Migrate] is run on
// construction and creates the two tables the store needs: the interview
// records themselves and the content-hash side table that implements
// append-time deduplication.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlInterviews = `
CREATE TABLE IF NOT EXISTS interviews (
    id          TEXT         PRIMARY KEY,
    status      TEXT         NOT NULL DEFAULT 'in_progress',
    config      JSONB,
    transcript  JSONB        NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interviews_created_at
    ON interviews (created_at DESC);
`

const ddlMessageHashes = `
CREATE TABLE IF NOT EXISTS message_hashes (
    interview_id  TEXT  NOT NULL REFERENCES interviews (id) ON DELETE CASCADE,
    content_hash  TEXT  NOT NULL,
    PRIMARY KEY (interview_id, content_hash)
);
`

// Migrate creates all tables and indexes the store requires. It is
// idempotent; every statement uses IF NOT EXISTS.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlInterviews, ddlMessageHashes} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
