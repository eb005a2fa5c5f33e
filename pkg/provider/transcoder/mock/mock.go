// Package mock provides a test double for the transcoder.Provider interface.
//
// By default the mock echoes its input, which lets tests thread marker bytes
// through the enrollment path and assert which clip content reached the
// extractor.
package mock

import (
	"context"
	"sync"

	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/transcoder"
)

// Compile-time interface check.
var _ transcoder.Provider = (*Transcoder)(nil)

// TranscodeCall records a single invocation of Transcode.
type TranscodeCall struct {
	// Ctx is the context passed to Transcode.
	Ctx context.Context
	// Raw is a copy of the upload passed to Transcode.
	Raw []byte
	// Target is the requested output format.
	Target audio.Format
}

// Transcoder is a mock implementation of transcoder.Provider.
type Transcoder struct {
	mu sync.Mutex

	// TranscodeResult, when non-nil, is returned from every call. When nil
	// the input bytes are returned unchanged (passthrough).
	TranscodeResult []byte

	// TranscodeErr, if non-nil, is returned as the error from Transcode.
	TranscodeErr error

	// ErrsByUpload maps upload content to an error returned for that exact
	// input, letting tests fail conversion for selected clips only.
	ErrsByUpload map[string]error

	// TranscodeCalls records every call in order.
	TranscodeCalls []TranscodeCall
}

// Transcode records the call and returns the configured output or error.
func (m *Transcoder) Transcode(ctx context.Context, raw []byte, target audio.Format) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(raw))
	copy(cp, raw)
	m.TranscodeCalls = append(m.TranscodeCalls, TranscodeCall{Ctx: ctx, Raw: cp, Target: target})

	if err, ok := m.ErrsByUpload[string(raw)]; ok {
		return nil, err
	}
	if m.TranscodeErr != nil {
		return nil, m.TranscodeErr
	}
	if m.TranscodeResult != nil {
		return m.TranscodeResult, nil
	}
	return cp, nil
}

// CallCount returns the number of Transcode invocations so far. Thread-safe.
func (m *Transcoder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscodeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Transcoder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscodeCalls = nil
}
