// Package ffmpeg provides a transcoder that shells out to the ffmpeg binary,
// handling every upload container and codec ffmpeg understands (webm, ogg,
// mp3, m4a, wav, …).
//
// ffmpeg must be installed and reachable on PATH (or configured via
// WithBinary). Each call runs one short-lived process:
//
//	ffmpeg -y -i <in> -ar <rate> -ac <channels> -sample_fmt s16 <out.wav>
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/transcoder"
)

// DefaultBinary is the executable name resolved against PATH.
const DefaultBinary = "ffmpeg"

// Compile-time interface check.
var _ transcoder.Provider = (*Transcoder)(nil)

// Transcoder converts uploads by invoking ffmpeg. Safe for concurrent use;
// every call gets its own scratch directory and process.
type Transcoder struct {
	binary string
}

// Option is a functional option for Transcoder.
type Option func(*Transcoder)

// WithBinary overrides the ffmpeg executable path.
func WithBinary(path string) Option {
	return func(t *Transcoder) { t.binary = path }
}

// New constructs a Transcoder and verifies the ffmpeg binary is resolvable,
// so a missing installation surfaces at startup instead of on the first
// upload.
func New(opts ...Option) (*Transcoder, error) {
	t := &Transcoder{binary: DefaultBinary}
	for _, o := range opts {
		o(t)
	}
	if _, err := exec.LookPath(t.binary); err != nil {
		return nil, fmt.Errorf("ffmpeg transcoder: %w", err)
	}
	return t, nil
}

// Transcode implements transcoder.Provider. The upload is written to a
// scratch file, converted by an ffmpeg subprocess, and the resulting WAV is
// read back. The subprocess is killed when ctx is cancelled.
func (t *Transcoder) Transcode(ctx context.Context, raw []byte, target audio.Format) ([]byte, error) {
	dir, err := os.MkdirTemp("", "voxident-transcode-*")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg transcoder: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// ffmpeg probes the container format from content, so the input needs
	// no extension.
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out.wav")
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return nil, fmt.Errorf("ffmpeg transcoder: write input: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.binary,
		"-y",
		"-i", in,
		"-ar", fmt.Sprint(target.SampleRate),
		"-ac", fmt.Sprint(target.Channels),
		"-sample_fmt", "s16",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg transcoder: convert: %w: %s", err, tail(output, 512))
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg transcoder: read output: %w", err)
	}
	return wav, nil
}

// tail returns at most n trailing bytes of b, where ffmpeg puts the actual
// error line.
func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
