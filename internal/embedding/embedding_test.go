package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPEmbedder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %q", req.Model)
		}

		resp := embedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL + "/", Model: "nomic-embed-text", Dimensions: 3}, nil, nil)
	vectors, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Equal(t, 3, e.Dimensions())

	one, err := EmbedOne(context.Background(), e, "salt")
	require.NoError(t, err)
	require.Len(t, one, 3)
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 768}, srv.Client(), nil)
	_, err := e.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestHTTPEmbedderServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 3}, nil, nil)
	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
}

func TestHashEmbedder(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(64)
	vectors, err := e.Embed(context.Background(), []string{
		"Salt Substitutes Reviewed",
		"healthier salt substitutes",
		"kale smoothies for breakfast",
		"",
	})
	require.NoError(t, err)
	require.NoError(t, CheckDimensions(vectors, 64))

	for _, v := range vectors {
		require.InDelta(t, 1.0, norm(v), 1e-5)
	}
	require.Greater(t, cosine(vectors[0], vectors[1]), cosine(vectors[2], vectors[1]))

	again, err := EmbedOne(context.Background(), e, "Salt Substitutes Reviewed")
	require.NoError(t, err)
	require.Equal(t, vectors[0], again)
}

func TestCheckDimensions(t *testing.T) {
	t.Parallel()
	require.NoError(t, CheckDimensions([][]float32{{1, 2}, {3, 4}}, 2))
	require.ErrorIs(t, CheckDimensions([][]float32{{1, 2}, {3}}, 2), ErrDimensionMismatch)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (norm(a) * norm(b))
}
