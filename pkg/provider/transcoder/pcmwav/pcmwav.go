// Package pcmwav provides a pure-Go transcoder for uploads that are already
// RIFF/WAV with 16-bit PCM samples. It decodes the container, resamples and
// downmixes to the target format, and re-encodes — no external binary
// required. Compressed uploads (webm, ogg, mp3, …) are rejected; deploy the
// ffmpeg transcoder when those must be accepted.
package pcmwav

import (
	"context"
	"fmt"

	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/transcoder"
)

// Compile-time interface check.
var _ transcoder.Provider = (*Transcoder)(nil)

// Transcoder converts PCM WAV uploads in-process. The zero value is ready
// to use and safe for concurrent use.
type Transcoder struct{}

// New returns a ready Transcoder.
func New() *Transcoder { return &Transcoder{} }

// Transcode implements transcoder.Provider.
func (*Transcoder) Transcode(ctx context.Context, raw []byte, target audio.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, pcm, err := audio.DecodeWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("pcmwav transcoder: %w", err)
	}
	if src.Channels > 2 || target.Channels > 2 {
		return nil, fmt.Errorf("pcmwav transcoder: %w: %d channels", audio.ErrUnsupportedWAV, src.Channels)
	}

	converted := audio.Convert(pcm, src, target)
	return audio.EncodeWAV(converted, target), nil
}
