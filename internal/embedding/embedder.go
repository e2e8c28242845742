// Package embedding turns text into dense vectors. The production embedder
// calls an OpenAI-compatible endpoint; a deterministic local embedder serves
// as an offline fallback so the service degrades instead of refusing to
// start when no API key is configured.
package embedding

import (
	"context"
	"math"
)

// Embedder produces a vector for a piece of text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// normalize scales v to unit length in place so cosine similarity reduces
// to a dot product. A zero vector is returned unchanged.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] *= inv
	}
	return v
}
