// Package audio provides the PCM toolkit for voxident: the canonical audio
// format, RIFF/WAV encoding and decoding, and sample-rate / channel
// conversion for 16-bit little-endian PCM.
package audio

import "fmt"

// Format describes the sample rate and channel count of a PCM stream.
// Sample width is fixed at 16-bit signed little-endian throughout.
type Format struct {
	SampleRate int
	Channels   int
}

// Canonical is the format every clip is normalized to before embedding
// extraction: 16 kHz mono, matching what voice-encoder models expect.
var Canonical = Format{SampleRate: 16000, Channels: 1}

// String returns a human-readable description, e.g. "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
