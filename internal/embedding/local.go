package embedding

import (
	"context"
	"hash/fnv"

	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

// LocalEmbedder maps text to a hashed bag-of-tokens vector. It captures
// lexical overlap only, not semantics, but it is deterministic and needs no
// network, which keeps ingestion and search usable without an embedding
// provider.
type LocalEmbedder struct {
	dimension int
}

func NewLocal(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalEmbedder{dimension: dimension}
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, e.dimension)
	for _, token := range textnorm.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		v[int(h.Sum32())%e.dimension]++
	}
	return normalize(v), nil
}
