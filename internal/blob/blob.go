// Package blob abstracts the durable object storage that holds per-utterance
// audio clips, so the engine can target the local filesystem in development
// and an S3-compatible bucket in production without code changes.
package blob

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by [Storage.Get] when no object exists at the path.
var ErrNotFound = errors.New("blob: object not found")

// Storage stores and retrieves opaque byte objects under slash-separated
// paths. Implementations must be safe for concurrent use.
type Storage interface {
	// Put stores data at path and returns the URL where it can be fetched.
	// Overwrites any existing object at the same path.
	Put(ctx context.Context, path string, data []byte, mimeType string) (string, error)

	// Get returns the object bytes at path, or [ErrNotFound].
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at path. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// ObjectPath returns the storage path for one utterance's audio clip,
// following the {interviewID}/{transcriptID}.wav convention.
func ObjectPath(interviewID, transcriptID string) string {
	return fmt.Sprintf("%s/%s.wav", interviewID, transcriptID)
}
