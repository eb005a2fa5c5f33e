// Package mock provides a test double for the extractor.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify which clips were submitted for extraction. Results can be
// keyed by clip content so different clips yield different vectors:
//
//	p := &mock.Provider{
//	    ResultsByClip: map[string][]float32{
//	        "clip-one": {1, 0, 0},
//	        "clip-two": {0, 1, 0},
//	    },
//	    DimensionsValue: 3,
//	}
package mock

import (
	"context"
	"sync"

	"github.com/voxident/voxident/pkg/provider/extractor"
)

// Compile-time interface check.
var _ extractor.Provider = (*Provider)(nil)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	// Ctx is the context passed to Extract.
	Ctx context.Context
	// WAV is a copy of the clip passed to Extract.
	WAV []byte
}

// Provider is a mock implementation of extractor.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ExtractResult is returned by Extract when no per-clip result matches.
	ExtractResult []float32

	// ResultsByClip maps clip content (as string) to the vector returned for
	// that exact clip. Checked before ExtractResult.
	ResultsByClip map[string][]float32

	// ErrsByClip maps clip content to an error returned for that clip,
	// letting tests fail extraction for selected slots only.
	ErrsByClip map[string]error

	// ExtractErr, if non-nil, is returned from every Extract call that has
	// no per-clip override.
	ExtractErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID. Defaults to "mock" when empty.
	ModelIDValue string

	// --- Call records ---

	// ExtractCalls records every call to Extract in order.
	ExtractCalls []ExtractCall
}

// Extract records the call and returns the configured vector or error.
func (p *Provider) Extract(ctx context.Context, wav []byte) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := make([]byte, len(wav))
	copy(cp, wav)
	p.ExtractCalls = append(p.ExtractCalls, ExtractCall{Ctx: ctx, WAV: cp})

	key := string(wav)
	if err, ok := p.ErrsByClip[key]; ok {
		return nil, err
	}
	if vec, ok := p.ResultsByClip[key]; ok {
		return vec, nil
	}
	if p.ExtractErr != nil {
		return nil, p.ExtractErr
	}
	return p.ExtractResult, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue, or "mock" when unset.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ModelIDValue == "" {
		return "mock"
	}
	return p.ModelIDValue
}

// CallCount returns the number of Extract invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ExtractCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = nil
}
