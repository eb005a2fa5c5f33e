package enroll

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	extractormock "github.com/voxident/voxident/pkg/provider/extractor/mock"
	registrymock "github.com/voxident/voxident/pkg/registry/mock"
	"github.com/voxident/voxident/pkg/voiceid"
)

const tolerance = 1e-6

func newTestAccumulator(t *testing.T, ext *extractormock.Provider) (*Accumulator, *registrymock.Registry) {
	t.Helper()
	reg := registrymock.New()
	return NewAccumulator(reg, ext), reg
}

func submitAll(t *testing.T, a *Accumulator, identity string, clips [][]byte) Progress {
	t.Helper()
	var prog Progress
	var err error
	for i, clip := range clips {
		prog, err = a.SubmitClip(context.Background(), identity, i+1, clip)
		if err != nil {
			t.Fatalf("SubmitClip(slot %d) = %v", i+1, err)
		}
	}
	return prog
}

func TestSubmitClipCollectsUntilComplete(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1, 0}}
	a, reg := newTestAccumulator(t, ext)

	prog, err := a.SubmitClip(context.Background(), "Bob", 1, []byte("clip-1"))
	if err != nil {
		t.Fatalf("SubmitClip() = %v", err)
	}
	if prog.Complete {
		t.Fatal("round complete after one clip")
	}
	if prog.ClipsReceived != 1 || prog.RequiredClips != DefaultRequiredClips {
		t.Fatalf("progress = %d/%d, want 1/%d",
			prog.ClipsReceived, prog.RequiredClips, DefaultRequiredClips)
	}
	if prog.Identity != "bob" {
		t.Fatalf("identity = %q, want %q (normalized)", prog.Identity, "bob")
	}
	if reg.Len() != 0 {
		t.Fatal("profile stored before round completed")
	}
	if ext.CallCount() != 0 {
		t.Fatal("extraction ran before round completed")
	}
}

func TestCommitAveragesEmbeddings(t *testing.T) {
	ext := &extractormock.Provider{
		ResultsByClip: map[string][]float32{
			"c1": {1, 0},
			"c2": {0, 1},
			"c3": {1, 1},
			"c4": {0, 0},
		},
	}
	a, reg := newTestAccumulator(t, ext)

	prog := submitAll(t, a, "alice", [][]byte{
		[]byte("c1"), []byte("c2"), []byte("c3"), []byte("c4"),
	})
	if !prog.Complete {
		t.Fatal("round not complete after final clip")
	}
	if prog.ClipsReceived != 0 {
		t.Fatalf("ClipsReceived after commit = %d, want 0", prog.ClipsReceived)
	}

	p, err := reg.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	want := []float32{0.5, 0.5}
	for i, v := range want {
		if math.Abs(float64(p.Fingerprint[i])-float64(v)) > tolerance {
			t.Errorf("fingerprint[%d] = %v, want %v", i, p.Fingerprint[i], v)
		}
	}
	if p.ClipsCount != 4 {
		t.Errorf("ClipsCount = %d, want 4", p.ClipsCount)
	}
	if p.EnrolledAt.IsZero() {
		t.Error("EnrolledAt not set")
	}
}

func TestCommitSkipsFailedClips(t *testing.T) {
	ext := &extractormock.Provider{
		ExtractResult: []float32{2, 0},
		ErrsByClip: map[string]error{
			"bad": errors.New("model choked"),
		},
	}
	a, reg := newTestAccumulator(t, ext)

	prog := submitAll(t, a, "carol", [][]byte{
		[]byte("ok1"), []byte("bad"), []byte("ok2"), []byte("ok3"),
	})
	if !prog.Complete {
		t.Fatal("round not complete")
	}
	if len(prog.ClipErrors) != 1 || prog.ClipErrors[0].Slot != 2 {
		t.Fatalf("ClipErrors = %+v, want one error for slot 2", prog.ClipErrors)
	}

	p, err := reg.Get(context.Background(), "carol")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if p.ClipsCount != 3 {
		t.Errorf("ClipsCount = %d, want 3 (failed clip excluded)", p.ClipsCount)
	}
	if math.Abs(float64(p.Fingerprint[0])-2) > tolerance {
		t.Errorf("fingerprint[0] = %v, want 2", p.Fingerprint[0])
	}
}

func TestCommitAllClipsFailed(t *testing.T) {
	ext := &extractormock.Provider{ExtractErr: errors.New("model down")}
	a, reg := newTestAccumulator(t, ext)

	clips := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for i := 0; i < 3; i++ {
		if _, err := a.SubmitClip(context.Background(), "dave", i+1, clips[i]); err != nil {
			t.Fatalf("SubmitClip(slot %d) = %v", i+1, err)
		}
	}

	prog, err := a.SubmitClip(context.Background(), "dave", 4, clips[3])
	if !errors.Is(err, voiceid.ErrInsufficientData) {
		t.Fatalf("SubmitClip(final) = %v, want %v", err, voiceid.ErrInsufficientData)
	}
	if len(prog.ClipErrors) != 4 {
		t.Fatalf("ClipErrors = %d entries, want 4", len(prog.ClipErrors))
	}
	if reg.Len() != 0 {
		t.Fatal("profile stored despite failed commit")
	}

	// Staged clips survive so a retry can commit once the model recovers.
	status, err := a.Status("dave")
	if err != nil {
		t.Fatalf("Status() = %v", err)
	}
	if status.ClipsReceived != 4 {
		t.Fatalf("ClipsReceived after failed commit = %d, want 4", status.ClipsReceived)
	}

	ext.ExtractErr = nil
	ext.ExtractResult = []float32{1}
	prog, err = a.SubmitClip(context.Background(), "dave", 4, clips[3])
	if err != nil {
		t.Fatalf("retry SubmitClip = %v", err)
	}
	if !prog.Complete {
		t.Fatal("retry did not commit")
	}
}

func TestCommitStorageFailureKeepsSession(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	reg := registrymock.New()
	reg.PutErr = errors.New("disk full")
	a := NewAccumulator(reg, ext)

	clips := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for i := 0; i < 3; i++ {
		a.SubmitClip(context.Background(), "erin", i+1, clips[i])
	}
	if _, err := a.SubmitClip(context.Background(), "erin", 4, clips[3]); err == nil {
		t.Fatal("SubmitClip(final) = nil, want storage error")
	}

	status, _ := a.Status("erin")
	if status.ClipsReceived != 4 {
		t.Fatalf("ClipsReceived after storage failure = %d, want 4", status.ClipsReceived)
	}

	reg.PutErr = nil
	prog, err := a.SubmitClip(context.Background(), "erin", 4, clips[3])
	if err != nil || !prog.Complete {
		t.Fatalf("retry = (%+v, %v), want committed round", prog, err)
	}
}

func TestSlotOverwrite(t *testing.T) {
	ext := &extractormock.Provider{
		ResultsByClip: map[string][]float32{
			"first":  {100},
			"second": {2},
			"x":      {2},
		},
	}
	a, reg := newTestAccumulator(t, ext)

	a.SubmitClip(context.Background(), "frank", 1, []byte("first"))
	prog, err := a.SubmitClip(context.Background(), "frank", 1, []byte("second"))
	if err != nil {
		t.Fatalf("SubmitClip(overwrite) = %v", err)
	}
	if prog.ClipsReceived != 1 {
		t.Fatalf("ClipsReceived = %d, want 1 (same slot)", prog.ClipsReceived)
	}

	submitAll(t, a, "frank", [][]byte{
		[]byte("second"), []byte("x"), []byte("x"), []byte("x"),
	})

	p, _ := reg.Get(context.Background(), "frank")
	if math.Abs(float64(p.Fingerprint[0])-2) > tolerance {
		t.Errorf("fingerprint[0] = %v, want 2 (overwritten clip must not count)", p.Fingerprint[0])
	}
}

func TestReenrollmentStartsFreshRound(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	a, reg := newTestAccumulator(t, ext)

	clips := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	submitAll(t, a, "gina", clips)
	if reg.Len() != 1 {
		t.Fatal("first enrollment not stored")
	}

	prog, err := a.SubmitClip(context.Background(), "gina", 1, []byte("new"))
	if err != nil {
		t.Fatalf("SubmitClip() = %v", err)
	}
	if prog.ClipsReceived != 1 || prog.Complete {
		t.Fatalf("progress = %+v, want fresh round at 1/%d", prog, DefaultRequiredClips)
	}
}

func TestResetDiscardsRound(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	a, _ := newTestAccumulator(t, ext)

	a.SubmitClip(context.Background(), "hank", 1, []byte("a"))
	a.SubmitClip(context.Background(), "hank", 2, []byte("b"))

	if err := a.Reset("hank"); err != nil {
		t.Fatalf("Reset() = %v", err)
	}

	status, _ := a.Status("hank")
	if status.ClipsReceived != 0 {
		t.Fatalf("ClipsReceived after Reset = %d, want 0", status.ClipsReceived)
	}
}

func TestSubmitClipValidation(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	a, _ := newTestAccumulator(t, ext)

	tests := []struct {
		name     string
		identity string
		slot     int
		clip     []byte
	}{
		{"empty identity", "   ", 1, []byte("a")},
		{"slot zero", "bob", 0, []byte("a")},
		{"slot too high", "bob", DefaultRequiredClips + 1, []byte("a")},
		{"empty clip", "bob", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.SubmitClip(context.Background(), tt.identity, tt.slot, tt.clip)
			if !errors.Is(err, voiceid.ErrValidation) {
				t.Fatalf("SubmitClip() = %v, want %v", err, voiceid.ErrValidation)
			}
		})
	}
}

func TestConcurrentFinalSlotSubmissions(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	a, reg := newTestAccumulator(t, ext)

	for i := 0; i < 3; i++ {
		a.SubmitClip(context.Background(), "ivy", i+1, []byte{byte(i)})
	}

	const workers = 8
	var wg sync.WaitGroup
	completes := make([]bool, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prog, err := a.SubmitClip(context.Background(), "ivy", 4, []byte("final"))
			completes[w] = err == nil && prog.Complete
		}()
	}
	wg.Wait()

	committed := 0
	for _, c := range completes {
		if c {
			committed++
		}
	}
	if committed != 1 {
		t.Fatalf("committed rounds = %d, want exactly 1", committed)
	}
	if reg.PutCalls != 1 {
		t.Fatalf("registry Put calls = %d, want 1", reg.PutCalls)
	}
}

func TestWithRequiredClips(t *testing.T) {
	ext := &extractormock.Provider{ExtractResult: []float32{1}}
	reg := registrymock.New()
	a := NewAccumulator(reg, ext, WithRequiredClips(2))

	if a.RequiredClips() != 2 {
		t.Fatalf("RequiredClips() = %d, want 2", a.RequiredClips())
	}

	a.SubmitClip(context.Background(), "jo", 1, []byte("a"))
	prog, err := a.SubmitClip(context.Background(), "jo", 2, []byte("b"))
	if err != nil {
		t.Fatalf("SubmitClip() = %v", err)
	}
	if !prog.Complete {
		t.Fatal("round with 2 required clips did not commit after 2 clips")
	}
}
