// Package voiceid defines the shared data model for speaker enrollment and
// identification: voice fingerprints, enrolled speaker profiles, and the
// error taxonomy used by the accumulator, registry, and matcher.
package voiceid

import (
	"fmt"
	"strings"
	"time"
)

// Fingerprint is a fixed-dimension voice embedding summarising a speaker's
// vocal characteristics. Committed fingerprints are produced only by [Mean]
// over per-clip embeddings and are never mutated in place — re-enrollment
// replaces them wholesale.
type Fingerprint []float32

// Clone returns an independent copy of f.
func (f Fingerprint) Clone() Fingerprint {
	if f == nil {
		return nil
	}
	cp := make(Fingerprint, len(f))
	copy(cp, f)
	return cp
}

// Profile is a single enrolled speaker record as stored in the registry.
type Profile struct {
	// Identity is the normalized (trimmed, lowercased) unique key.
	Identity string `json:"identity"`

	// EnrolledAt is the UTC timestamp of the enrollment commit.
	EnrolledAt time.Time `json:"enrolled_date"`

	// ClipsCount is the number of clips that contributed to the fingerprint,
	// in [1, RequiredClips]. It may be lower than RequiredClips when some
	// clips failed extraction and were skipped.
	ClipsCount int `json:"clips_count"`

	// Fingerprint is the committed averaged embedding.
	Fingerprint Fingerprint `json:"fingerprint"`
}

// NormalizeIdentity canonicalises a caller-supplied identity: surrounding
// whitespace is trimmed and the result is lowercased so lookups are
// case-insensitive. Returns [ErrValidation] when the result is empty.
func NormalizeIdentity(identity string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(identity))
	if key == "" {
		return "", fmt.Errorf("%w: identity must not be empty", ErrValidation)
	}
	return key, nil
}
