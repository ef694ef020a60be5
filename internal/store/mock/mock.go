// Package mock provides an in-memory test double for [store.Store].
//
// The mock records every method call for assertion in tests and implements
// real append/dedup semantics, so finalize-pipeline tests exercise the same
// fingerprint behaviour as the PostgreSQL store. Safe for concurrent use.
//
// Typical usage:
//
//	st := &mock.Store{}
//	// inject st into the system under test …
//	if got := st.CallCount("AppendMessage"); got != 1 {
//	    t.Errorf("AppendMessage calls = %d, want 1", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verbatimhq/verbatim/internal/ledger"
	"github.com/verbatimhq/verbatim/internal/store"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	Method string
	Args   []any
}

// Store is a configurable in-memory test double for [store.Store].
type Store struct {
	mu sync.Mutex

	// CreateErr, UpdateErr, AppendMessageErr and DeleteErr are returned by
	// the corresponding methods when non-nil.
	CreateErr        error
	UpdateErr        error
	AppendMessageErr error
	DeleteErr        error

	interviews map[string]*store.Interview
	hashes     map[string]map[string]bool
	order      []string
	calls      []Call
}

var _ store.Store = (*Store)(nil)

func (s *Store) record(method string, args ...any) {
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

func (s *Store) init() {
	if s.interviews == nil {
		s.interviews = make(map[string]*store.Interview)
		s.hashes = make(map[string]map[string]bool)
	}
}

// Create implements [store.Store].
func (s *Store) Create(ctx context.Context, id string) (store.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Create", id)
	if s.CreateErr != nil {
		return store.Interview{}, s.CreateErr
	}
	s.init()

	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	iv := &store.Interview{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    store.StatusInProgress,
		Messages:  []ledger.Message{},
	}
	s.interviews[id] = iv
	s.hashes[id] = make(map[string]bool)
	s.order = append(s.order, id)
	return *iv, nil
}

// Update implements [store.Store].
func (s *Store) Update(ctx context.Context, id string, params store.UpdateParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Update", id, params)
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	s.init()

	iv, ok := s.interviews[id]
	if !ok {
		return store.ErrNotFound
	}
	if params.Status != nil {
		iv.Status = *params.Status
	}
	if params.Config != nil {
		iv.Config = params.Config
	}
	if params.Messages != nil {
		iv.Messages = append([]ledger.Message(nil), params.Messages...)
	}
	iv.UpdatedAt = time.Now()
	return nil
}

// Get implements [store.Store].
func (s *Store) Get(ctx context.Context, id string) (store.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Get", id)
	s.init()

	iv, ok := s.interviews[id]
	if !ok {
		return store.Interview{}, store.ErrNotFound
	}
	out := *iv
	out.Messages = append([]ledger.Message(nil), iv.Messages...)
	return out, nil
}

// List implements [store.Store].
func (s *Store) List(ctx context.Context) ([]store.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("List")
	s.init()

	out := make([]store.Interview, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if iv, ok := s.interviews[s.order[i]]; ok {
			out = append(out, *iv)
		}
	}
	return out, nil
}

// AppendMessage implements [store.Store] with the same replace-or-dedup
// semantics as the PostgreSQL store.
func (s *Store) AppendMessage(ctx context.Context, interviewID string, msg ledger.Message) (store.AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("AppendMessage", interviewID, msg)
	if s.AppendMessageErr != nil {
		return store.AppendResult{}, s.AppendMessageErr
	}
	s.init()

	iv, ok := s.interviews[interviewID]
	if !ok {
		return store.AppendResult{}, store.ErrNotFound
	}

	for i := range iv.Messages {
		if iv.Messages[i].TranscriptID == msg.TranscriptID {
			iv.Messages[i] = msg
			iv.UpdatedAt = time.Now()
			return store.AppendResult{Persisted: true}, nil
		}
	}

	hash := ledger.Fingerprint(interviewID, msg.Transcript)
	if s.hashes[interviewID][hash] {
		return store.AppendResult{Persisted: true, Duplicate: true}, nil
	}
	s.hashes[interviewID][hash] = true
	iv.Messages = append(iv.Messages, msg)
	iv.UpdatedAt = time.Now()
	return store.AppendResult{Persisted: true}, nil
}

// Delete implements [store.Store].
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Delete", id)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.init()

	if _, ok := s.interviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.interviews, id)
	delete(s.hashes, id)
	return nil
}

// Calls returns a copy of all recorded method invocations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering stored data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
