// Package registry defines the durable store of committed speaker profiles.
//
// The registry is the sole owner of persisted fingerprints: the enrollment
// accumulator hands over a complete [voiceid.Profile] in a single Put and
// never persists partial state. Implementations guarantee atomic visibility
// — a reader never observes a profile whose metadata and fingerprint do not
// belong together, even across a crash mid-write.
//
// Implementations must be safe for concurrent use. Writers to different
// identities proceed independently; writers to the same identity serialize
// with last-writer-wins semantics.
package registry

import (
	"context"

	"github.com/voxident/voxident/pkg/voiceid"
)

// Registry is the abstraction over any profile store backend.
type Registry interface {
	// Put stores profile under its identity key, replacing any existing
	// record wholesale. Returns an error wrapping [voiceid.ErrStorage] on
	// backend failure.
	Put(ctx context.Context, profile voiceid.Profile) error

	// Get returns the profile stored under key.
	// Returns an error wrapping [voiceid.ErrNotFound] when absent.
	Get(ctx context.Context, key string) (voiceid.Profile, error)

	// List returns all stored profiles sorted by identity key. The order is
	// deterministic so matching and tests are reproducible.
	List(ctx context.Context) ([]voiceid.Profile, error)

	// Delete removes the record under key, metadata and fingerprint together.
	// Returns an error wrapping [voiceid.ErrNotFound] when absent.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
