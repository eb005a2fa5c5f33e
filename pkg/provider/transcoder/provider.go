// Package transcoder defines the Provider interface for audio normalization
// backends.
//
// A transcoder converts an arbitrary-format upload (webm, ogg, mp3, m4a,
// wav, …) into canonical single-channel 16-bit PCM WAV at a target sample
// rate, ready for embedding extraction. Conversion failures are local to
// one clip and retryable.
//
// Implementations must be safe for concurrent use.
package transcoder

import (
	"context"

	"github.com/voxident/voxident/pkg/audio"
)

// Provider is the abstraction over any audio conversion backend.
type Provider interface {
	// Transcode converts raw upload bytes into a WAV clip in the target
	// format. The returned bytes are a complete RIFF/WAVE file. Returns an
	// error when the input cannot be decoded or ctx is cancelled; the input
	// is never partially converted.
	Transcode(ctx context.Context, raw []byte, target audio.Format) ([]byte, error)
}
