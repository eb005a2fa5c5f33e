package voiceid_test

import (
	"errors"
	"math"
	"testing"

	"github.com/voxident/voxident/pkg/voiceid"
)

const tolerance = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestMean(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{3, 4, 5},
		{5, 6, 10},
	}
	got, err := voiceid.Mean(vectors)
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	want := []float32{3, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("dimension mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(float64(got[i]), float64(want[i])) {
			t.Errorf("element %d: got %g, want %g", i, got[i], want[i])
		}
	}
}

func TestMean_SingleVector(t *testing.T) {
	got, err := voiceid.Mean([][]float32{{0.25, -0.5}})
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if got[0] != 0.25 || got[1] != -0.5 {
		t.Errorf("mean of one vector should be the vector itself, got %v", got)
	}
}

func TestMean_Empty(t *testing.T) {
	if _, err := voiceid.Mean(nil); !errors.Is(err, voiceid.ErrValidation) {
		t.Errorf("expected ErrValidation for empty input, got %v", err)
	}
}

func TestMean_DimensionMismatch(t *testing.T) {
	_, err := voiceid.Mean([][]float32{{1, 2}, {1, 2, 3}})
	if !errors.Is(err, voiceid.ErrValidation) {
		t.Errorf("expected ErrValidation for mismatched dimensions, got %v", err)
	}
}

func TestDot(t *testing.T) {
	a := voiceid.Fingerprint{1, 0, 2}
	b := voiceid.Fingerprint{3, 5, 0.5}
	if got := voiceid.Dot(a, b); !almostEqual(got, 4) {
		t.Errorf("Dot: got %g, want 4", got)
	}
}

func TestDot_Orthogonal(t *testing.T) {
	a := voiceid.Fingerprint{1, 0}
	b := voiceid.Fingerprint{0, 1}
	if got := voiceid.Dot(a, b); got != 0 {
		t.Errorf("Dot of orthogonal vectors: got %g, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	f := voiceid.Fingerprint{3, 4}
	unit := voiceid.Normalize(f)
	if !almostEqual(voiceid.Norm(unit), 1) {
		t.Errorf("Normalize: magnitude %g, want 1", voiceid.Norm(unit))
	}
	// Original must be untouched.
	if f[0] != 3 || f[1] != 4 {
		t.Errorf("Normalize mutated its input: %v", f)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	unit := voiceid.Normalize(voiceid.Fingerprint{0, 0, 0})
	for i, x := range unit {
		if x != 0 {
			t.Errorf("element %d: got %g, want 0", i, x)
		}
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Alice", "alice", false},
		{"  Bob Marley  ", "bob marley", false},
		{"carol", "carol", false},
		{"", "", true},
		{"   ", "", true},
	}
	for _, tt := range tests {
		got, err := voiceid.NormalizeIdentity(tt.in)
		if tt.wantErr {
			if !errors.Is(err, voiceid.ErrValidation) {
				t.Errorf("NormalizeIdentity(%q): expected ErrValidation, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeIdentity(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
