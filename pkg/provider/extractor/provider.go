// Package extractor defines the Provider interface for voice-embedding
// backends.
//
// An extractor wraps a model that maps a canonical audio clip (16 kHz mono
// s16le WAV) to a dense float32 vector summarising the speaker's vocal
// characteristics. The enrollment accumulator averages these per-clip
// vectors into one fingerprint per identity; the matcher compares a probe
// vector against stored fingerprints.
//
// Implementations must be safe for concurrent use.
package extractor

import "context"

// Provider is the abstraction over any voice-embedding backend.
//
// All vectors returned by a single Provider instance share the same
// dimensionality (returned by Dimensions) and are expected to be
// unit-normalized so that a dot product equals cosine similarity. Vectors
// from different Provider instances must not be mixed in one comparison
// unless both use the same model and space.
type Provider interface {
	// Extract computes the embedding vector for one canonical WAV clip.
	// Returns a float32 slice of length Dimensions() or an error if the
	// model fails on this clip or ctx is cancelled.
	Extract(ctx context.Context, wav []byte) ([]float32, error)

	// Dimensions returns the fixed length of every vector produced by this
	// provider, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, useful for
	// logging and for ensuring consistent model usage across a registry.
	ModelID() string
}
