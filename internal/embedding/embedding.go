// Package embedding provides text embedders used for indexing and querying.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector does not have the configured length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps text onto a fixed-length dense vector.
type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the length of every returned vector.
	Dimensions() int
}

// EmbedOne is a convenience wrapper for a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed text: expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

// CheckDimensions verifies that every vector has length dims.
func CheckDimensions(vectors [][]float32, dims int) error {
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return nil
}
