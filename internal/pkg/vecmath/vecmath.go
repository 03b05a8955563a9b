// Package vecmath holds the similarity primitives used by the image cache.
// The cache scans entries linearly; everything that would change when moving
// to an indexed vector store lives behind this package.
package vecmath

import (
	"fmt"
	"math"

	appErr "github.com/weirwood/scry/internal/pkg/errors"
)

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Vectors of different lengths are a caller bug, not a data condition.
// A zero-magnitude operand yields 0.0 rather than NaN.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector length mismatch: %d vs %d", appErr.ErrInvalid, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
