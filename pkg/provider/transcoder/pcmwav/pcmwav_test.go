package pcmwav_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/transcoder/pcmwav"
)

func makeWAV(samples []int16, f audio.Format) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return audio.EncodeWAV(pcm, f)
}

func TestTranscode_AlreadyCanonical(t *testing.T) {
	in := makeWAV([]int16{1, 2, 3, 4}, audio.Canonical)
	out, err := pcmwav.New().Transcode(context.Background(), in, audio.Canonical)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	f, pcm, err := audio.DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if f != audio.Canonical {
		t.Errorf("format: got %v, want %v", f, audio.Canonical)
	}
	if len(pcm) != 8 {
		t.Errorf("pcm length: got %d, want 8", len(pcm))
	}
}

func TestTranscode_StereoHighRateToCanonical(t *testing.T) {
	// 480 stereo frames at 48 kHz = 10 ms.
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i)
	}
	in := makeWAV(samples, audio.Format{SampleRate: 48000, Channels: 2})

	out, err := pcmwav.New().Transcode(context.Background(), in, audio.Canonical)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	f, pcm, err := audio.DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if f != audio.Canonical {
		t.Errorf("format: got %v, want %v", f, audio.Canonical)
	}
	// 10 ms at 16 kHz mono = 160 samples.
	if got := len(pcm) / 2; got != 160 {
		t.Errorf("sample count: got %d, want 160", got)
	}
}

func TestTranscode_RejectsNonWAV(t *testing.T) {
	_, err := pcmwav.New().Transcode(context.Background(), []byte("\x1aE\xdf\xa3 webm junk"), audio.Canonical)
	if !errors.Is(err, audio.ErrNotWAV) {
		t.Errorf("expected ErrNotWAV, got %v", err)
	}
}

func TestTranscode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pcmwav.New().Transcode(ctx, makeWAV([]int16{1}, audio.Canonical), audio.Canonical)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
