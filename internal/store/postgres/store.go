package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verbatimhq/verbatim/internal/ledger"
	"github.com/verbatimhq/verbatim/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is the PostgreSQL-backed interview record store.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the schema exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping probes database connectivity; used by the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create implements [store.Store].
func (s *Store) Create(ctx context.Context, id string) (store.Interview, error) {
	if id == "" {
		id = uuid.NewString()
	}

	const q = `
		INSERT INTO interviews (id, status, transcript)
		VALUES ($1, $2, '[]')
		RETURNING id, status, config, transcript, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, id, store.StatusInProgress)
	iv, err := scanInterview(row)
	if err != nil {
		return store.Interview{}, fmt.Errorf("postgres store: create interview: %w", err)
	}
	return iv, nil
}

// Update implements [store.Store].
func (s *Store) Update(ctx context.Context, id string, params store.UpdateParams) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Status != nil {
		sets = append(sets, "status = "+next(string(*params.Status)))
	}
	if params.Config != nil {
		sets = append(sets, "config = "+next(params.Config))
	}
	if params.Messages != nil {
		transcript, err := json.Marshal(params.Messages)
		if err != nil {
			return fmt.Errorf("postgres store: marshal transcript: %w", err)
		}
		sets = append(sets, "transcript = "+next(transcript))
	}

	q := "UPDATE interviews SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres store: update interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get implements [store.Store].
func (s *Store) Get(ctx context.Context, id string) (store.Interview, error) {
	const q = `
		SELECT id, status, config, transcript, created_at, updated_at
		FROM   interviews
		WHERE  id = $1`

	iv, err := scanInterview(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Interview{}, store.ErrNotFound
	}
	if err != nil {
		return store.Interview{}, fmt.Errorf("postgres store: get interview: %w", err)
	}
	return iv, nil
}

// List implements [store.Store].
func (s *Store) List(ctx context.Context) ([]store.Interview, error) {
	const q = `
		SELECT id, status, config, transcript, created_at, updated_at
		FROM   interviews
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list interviews: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Interview, error) {
		return scanInterview(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list interviews: %w", err)
	}
	return out, nil
}

// AppendMessage implements [store.Store]. The transcript row is locked for
// the duration of the transaction so concurrent appends to the same
// interview serialize.
func (s *Store) AppendMessage(ctx context.Context, interviewID string, msg ledger.Message) (store.AppendResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	var transcript []byte
	err = tx.QueryRow(ctx,
		`SELECT transcript FROM interviews WHERE id = $1 FOR UPDATE`,
		interviewID,
	).Scan(&transcript)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.AppendResult{}, store.ErrNotFound
	}
	if err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: lock transcript: %w", err)
	}

	var messages []ledger.Message
	if err := json.Unmarshal(transcript, &messages); err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: parse transcript: %w", err)
	}

	replaced := false
	for i := range messages {
		if messages[i].TranscriptID == msg.TranscriptID {
			messages[i] = msg
			replaced = true
			break
		}
	}

	if !replaced {
		// New transcript id: dedup by content fingerprint. A no-op insert
		// means the same utterance was already persisted under another id.
		hash := ledger.Fingerprint(interviewID, msg.Transcript)
		tag, err := tx.Exec(ctx,
			`INSERT INTO message_hashes (interview_id, content_hash)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			interviewID, hash,
		)
		if err != nil {
			return store.AppendResult{}, fmt.Errorf("postgres store: insert hash: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if err := tx.Commit(ctx); err != nil {
				return store.AppendResult{}, fmt.Errorf("postgres store: commit append: %w", err)
			}
			return store.AppendResult{Persisted: true, Duplicate: true}, nil
		}
		messages = append(messages, msg)
	}

	updated, err := json.Marshal(messages)
	if err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: marshal transcript: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE interviews SET transcript = $2, updated_at = now() WHERE id = $1`,
		interviewID, updated,
	); err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: update transcript: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return store.AppendResult{}, fmt.Errorf("postgres store: commit append: %w", err)
	}
	return store.AppendResult{Persisted: true}, nil
}

// Delete implements [store.Store]. Message hashes cascade with the record.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// scanInterview scans one interviews row.
func scanInterview(row pgx.Row) (store.Interview, error) {
	var (
		iv         store.Interview
		status     string
		transcript []byte
	)
	if err := row.Scan(&iv.ID, &status, &iv.Config, &transcript, &iv.CreatedAt, &iv.UpdatedAt); err != nil {
		return store.Interview{}, err
	}
	iv.Status = store.Status(status)
	if err := json.Unmarshal(transcript, &iv.Messages); err != nil {
		return store.Interview{}, fmt.Errorf("parse transcript: %w", err)
	}
	return iv, nil
}
