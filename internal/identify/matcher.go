// Package identify matches probe voice embeddings against enrolled
// speaker profiles.
package identify

import (
	"context"
	"fmt"

	"github.com/voxident/voxident/pkg/registry"
	"github.com/voxident/voxident/pkg/voiceid"
)

// Unknown is the prediction returned when no enrolled profile scores at
// or above the similarity threshold.
const Unknown = "unknown"

// DefaultThreshold is the minimum dot-product similarity for a match.
const DefaultThreshold = 0.75

// Result is the outcome of an identification.
type Result struct {
	// Prediction is the matched identity, or [Unknown].
	Prediction string `json:"prediction"`
	// Confidence is the best similarity score seen. Exactly zero when the
	// registry is empty.
	Confidence float64 `json:"confidence"`
	// Threshold is the similarity cutoff the decision was made against.
	Threshold float64 `json:"threshold"`
	// AllScores maps every enrolled identity to its similarity score.
	AllScores map[string]float64 `json:"all_scores,omitempty"`
}

// Matcher scans the registry for the enrolled profile most similar to a
// probe embedding. Safe for concurrent use.
type Matcher struct {
	registry       registry.Registry
	threshold      float64
	normalizeProbe bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides the similarity cutoff.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// WithNormalizeProbe makes the matcher L2-normalize probe embeddings
// before scoring. Off by default; enrolled fingerprints are compared
// as stored either way.
func WithNormalizeProbe(on bool) Option {
	return func(m *Matcher) { m.normalizeProbe = on }
}

// NewMatcher creates a matcher reading profiles from reg.
func NewMatcher(reg registry.Registry, opts ...Option) *Matcher {
	m := &Matcher{
		registry:  reg,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured similarity cutoff.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Identify scores probe against every enrolled profile and returns the
// best match. Profiles are scanned in sorted identity order, and only a
// strictly higher score displaces the current best, so ties resolve to
// the first identity in that order. An empty registry yields [Unknown]
// with a confidence of exactly zero.
func (m *Matcher) Identify(ctx context.Context, probe voiceid.Fingerprint) (Result, error) {
	if len(probe) == 0 {
		return Result{}, fmt.Errorf("%w: empty probe embedding", voiceid.ErrValidation)
	}
	if m.normalizeProbe {
		probe = voiceid.Normalize(probe)
	}

	profiles, err := m.registry.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing profiles: %w", err)
	}

	result := Result{
		Prediction: Unknown,
		Threshold:  m.threshold,
		AllScores:  make(map[string]float64, len(profiles)),
	}

	best := ""
	bestScore := 0.0
	for i, p := range profiles {
		if len(p.Fingerprint) != len(probe) {
			return Result{}, fmt.Errorf("%w: probe has %d dimensions, profile %q has %d",
				voiceid.ErrValidation, len(probe), p.Identity, len(p.Fingerprint))
		}
		score := voiceid.Dot(probe, p.Fingerprint)
		result.AllScores[p.Identity] = score
		if i == 0 || score > bestScore {
			bestScore = score
			best = p.Identity
		}
	}

	if best != "" {
		result.Confidence = bestScore
		if bestScore >= m.threshold {
			result.Prediction = best
		}
	}
	return result, nil
}
