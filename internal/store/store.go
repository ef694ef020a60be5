// Package store defines the durable interview record store: the external
// collaborator that persists finalized conversation messages and interview
// lifecycle state.
//
// [Store.AppendMessage] is idempotent by content fingerprint — retrying a
// persist, or a duplicate finalize trigger racing a retry, never creates two
// stored records for the same utterance.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/verbatimhq/verbatim/internal/ledger"
)

// ErrNotFound is returned when no interview exists with the requested id.
var ErrNotFound = errors.New("store: interview not found")

// Status is the lifecycle state of an interview record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPaused     Status = "paused"
)

// IsValid reports whether s is a recognised interview status.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

// Interview is the full durable record for one interview session.
type Interview struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Status    Status

	// Config is the opaque interview configuration captured at setup time.
	Config json.RawMessage

	// Messages is the persisted conversation transcript.
	Messages []ledger.Message
}

// UpdateParams carries the fields of an interview to change. Nil fields are
// left untouched.
type UpdateParams struct {
	Status   *Status
	Config   json.RawMessage
	Messages []ledger.Message
}

// AppendResult reports the outcome of an [Store.AppendMessage] call.
type AppendResult struct {
	// Persisted is true when the message is durably stored — including the
	// duplicate case, which is a successful no-op.
	Persisted bool

	// Duplicate is true when a record with the same content fingerprint
	// already existed for the interview and no new record was written.
	Duplicate bool
}

// Store persists interview records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create inserts a new in-progress interview. When id is empty an id is
	// generated. Returns the created record.
	Create(ctx context.Context, id string) (Interview, error)

	// Update applies the non-nil fields of params to the interview.
	// Returns [ErrNotFound] when the interview does not exist.
	Update(ctx context.Context, id string, params UpdateParams) error

	// Get returns the interview with the given id, or [ErrNotFound].
	Get(ctx context.Context, id string) (Interview, error)

	// List returns all interviews, most recently created first.
	List(ctx context.Context) ([]Interview, error)

	// AppendMessage adds one finalized message to the interview transcript.
	// A message whose transcript id already appears in the transcript
	// replaces the stored copy. A new message whose content fingerprint
	// (see [ledger.Fingerprint]) already exists for the interview is dropped
	// and reported as a duplicate success.
	AppendMessage(ctx context.Context, interviewID string, msg ledger.Message) (AppendResult, error)

	// Delete removes the interview and its transcript.
	Delete(ctx context.Context, id string) error
}
