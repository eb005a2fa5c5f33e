package voiceid

import (
	"fmt"
	"math"
)

// Mean computes the elementwise arithmetic mean of the supplied embedding
// vectors. All vectors must share the same non-zero dimension. Returns
// [ErrValidation] when vectors is empty or the dimensions disagree.
func Mean(vectors [][]float32) (Fingerprint, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: mean of zero vectors", ErrValidation)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimension vector", ErrValidation)
	}

	// Accumulate in float64 so summation order noise stays below the
	// float32 representation of the result.
	sum := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrValidation, i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}

	out := make(Fingerprint, dim)
	n := float64(len(vectors))
	for j, s := range sum {
		out[j] = float32(s / n)
	}
	return out, nil
}

// Dot returns the dot product of a and b. When both vectors are
// unit-normalized this equals their cosine similarity. Dimensions must
// match; the shorter length is used otherwise, which callers should treat
// as a configuration error upstream.
func Dot(a, b Fingerprint) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean magnitude of f.
func Norm(f Fingerprint) float64 {
	var sum float64
	for _, x := range f {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-magnitude copy of f. A zero vector is returned
// unchanged (as a copy) since it has no direction to preserve. Use this when
// the configured extractor does not already emit unit vectors; comparing
// unnormalized embeddings silently miscalibrates the similarity threshold.
func Normalize(f Fingerprint) Fingerprint {
	out := f.Clone()
	mag := Norm(f)
	if mag == 0 {
		return out
	}
	inv := float32(1 / mag)
	for i := range out {
		out[i] *= inv
	}
	return out
}
