package ffmpeg_test

import (
	"context"
	"encoding/binary"
	"os/exec"
	"testing"

	"github.com/voxident/voxident/pkg/audio"
	"github.com/voxident/voxident/pkg/provider/transcoder/ffmpeg"
)

// requireFFmpeg skips the test when the ffmpeg binary is not installed.
func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not on PATH — skipping ffmpeg transcoder tests")
	}
}

func TestNew_MissingBinary(t *testing.T) {
	if _, err := ffmpeg.New(ffmpeg.WithBinary("definitely-not-ffmpeg-bin")); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestTranscode_WAVToCanonical(t *testing.T) {
	requireFFmpeg(t)

	// 48 kHz stereo source, 100 ms of silence.
	src := audio.Format{SampleRate: 48000, Channels: 2}
	pcm := make([]byte, 4800*4)
	in := audio.EncodeWAV(pcm, src)

	tr, err := ffmpeg.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := tr.Transcode(context.Background(), in, audio.Canonical)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	f, outPCM, err := audio.DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if f != audio.Canonical {
		t.Errorf("format: got %v, want %v", f, audio.Canonical)
	}
	// 100 ms at 16 kHz mono = 1600 samples; allow resampler edge slack.
	got := len(outPCM) / 2
	if got < 1550 || got > 1650 {
		t.Errorf("sample count: got %d, want ≈1600", got)
	}
	for i := 0; i+1 < len(outPCM); i += 2 {
		if s := int16(binary.LittleEndian.Uint16(outPCM[i:])); s != 0 {
			t.Fatalf("expected silence, sample %d is %d", i/2, s)
		}
	}
}

func TestTranscode_GarbageInput(t *testing.T) {
	requireFFmpeg(t)

	tr, err := ffmpeg.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tr.Transcode(context.Background(), []byte("not audio at all"), audio.Canonical); err == nil {
		t.Error("expected error for undecodable input")
	}
}
