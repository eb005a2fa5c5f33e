package resilience

import (
	"context"

	"github.com/voxident/voxident/pkg/provider/extractor"
)

// ExtractorFallback wraps a chain of embedding extractors behind the
// [extractor.Provider] interface. Extraction walks the chain; metadata
// accessors (Dimensions, ModelID) always report the primary's values so
// the registry schema stays pinned to one encoder.
type ExtractorFallback struct {
	group   *FallbackGroup[extractor.Provider]
	primary extractor.Provider
}

var _ extractor.Provider = (*ExtractorFallback)(nil)

// NewExtractorFallback builds a fallback chain from primary plus
// fallbacks, in that order, each with a breaker configured from cfg.
// Names label the entries in logs; names[i] corresponds to fallbacks[i]
// with an extra leading name for the primary.
func NewExtractorFallback(primary extractor.Provider, primaryName string, cfg Config, fallbacks []extractor.Provider, names []string) *ExtractorFallback {
	group := NewFallbackGroup[extractor.Provider]()
	group.Add(primaryName, primary, cfg)
	for i, p := range fallbacks {
		name := "fallback"
		if i < len(names) {
			name = names[i]
		}
		group.Add(name, p, cfg)
	}
	return &ExtractorFallback{group: group, primary: primary}
}

// Extract runs the extraction against the first healthy provider in the
// chain.
func (f *ExtractorFallback) Extract(ctx context.Context, wav []byte) ([]float32, error) {
	return ExecuteWithResult(ctx, f.group, func(p extractor.Provider) ([]float32, error) {
		return p.Extract(ctx, wav)
	})
}

// Dimensions reports the primary extractor's embedding dimensionality.
func (f *ExtractorFallback) Dimensions() int {
	return f.primary.Dimensions()
}

// ModelID reports the primary extractor's model identifier.
func (f *ExtractorFallback) ModelID() string {
	return f.primary.ModelID()
}
