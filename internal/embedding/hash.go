package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, model-free embedder based on signed feature hashing
// of lowercase word tokens. It is meant for local runs and tests where no model server
// is available; similar texts share tokens and therefore land close together.
type HashEmbedder struct {
	dims int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder returns a HashEmbedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 2 {
		dims = 2
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions implements Embedder.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed implements Embedder.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, h.vector(text))
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, h.dims)
	// Slot 0 is a constant bias so no vector is ever all zeros; cosine similarity is
	// undefined for the zero vector.
	acc[0] = 1
	for _, tok := range tokenize(text) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(tok))
		sum := hasher.Sum64()
		idx := 1 + int(sum%uint64(h.dims-1))
		if sum&(1<<63) != 0 {
			acc[idx]--
		} else {
			acc[idx]++
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, h.dims)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
