// Package mock provides an in-memory test double for [blob.Storage].
//
// The mock records every method call for assertion in tests and actually
// stores objects, so round-trip tests work without a filesystem. Safe for
// concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/verbatimhq/verbatim/internal/blob"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	Method string
	Args   []any
}

// Storage is a configurable in-memory test double for [blob.Storage].
type Storage struct {
	mu sync.Mutex

	// PutErr is returned by Put when non-nil.
	PutErr error

	// GetErr is returned by Get when non-nil.
	GetErr error

	// URLPrefix is prepended to object paths in Put return values.
	// Defaults to "mock://".
	URLPrefix string

	objects map[string][]byte
	calls   []Call
}

var _ blob.Storage = (*Storage)(nil)

func (s *Storage) record(method string, args ...any) {
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

// Put implements [blob.Storage].
func (s *Storage) Put(ctx context.Context, path string, data []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Put", path, mimeType)
	if s.PutErr != nil {
		return "", s.PutErr
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf

	prefix := s.URLPrefix
	if prefix == "" {
		prefix = "mock://"
	}
	return prefix + path, nil
}

// Get implements [blob.Storage].
func (s *Storage) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Get", path)
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	data, ok := s.objects[path]
	if !ok {
		return nil, blob.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Delete implements [blob.Storage].
func (s *Storage) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Delete", path)
	delete(s.objects, path)
	return nil
}

// Exists implements [blob.Storage].
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Exists", path)
	_, ok := s.objects[path]
	return ok, nil
}

// Calls returns a copy of all recorded method invocations.
func (s *Storage) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (s *Storage) CallCount(method string) int {
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
