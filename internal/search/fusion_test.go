package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFusion(t *testing.T) {
	t.Parallel()

	f, err := NewFusion("weighted", FusionConfig{LexicalBoost: 0.5, VectorBoost: 0.5})
	require.NoError(t, err)
	require.Equal(t, FusionWeighted, f.Name())

	f, err = NewFusion(" RRF ", FusionConfig{RankConstant: 60})
	require.NoError(t, err)
	require.Equal(t, FusionRRF, f.Name())

	f, err = NewFusion("semantic", FusionConfig{})
	require.NoError(t, err)
	require.Equal(t, FusionSemantic, f.Name())

	_, err = NewFusion("bm25", FusionConfig{})
	require.Error(t, err)
}

func TestWeightedBlendBody(t *testing.T) {
	t.Parallel()

	body := WeightedBlend{LexicalBoost: 0.5, VectorBoost: 0.5}.Body(Request{
		Text: "salt", Vector: []float32{1, 0}, K: 5, NumCandidates: 10000,
	})
	require.Equal(t, 5, body["size"])

	match := body["query"].(map[string]any)["bool"].(map[string]any)["must"].(map[string]any)["multi_match"].(map[string]any)
	require.Equal(t, "salt", match["query"])
	require.Equal(t, []string{"combined_text^3", "title", "blog_tags"}, match["fields"])
	require.Equal(t, "best_fields", match["type"])
	require.Equal(t, 0.5, match["boost"])

	knn := body["knn"].(map[string]any)
	require.Equal(t, VectorField, knn["field"])
	require.Equal(t, 5, knn["k"])
	require.Equal(t, 10000, knn["num_candidates"])
	require.Equal(t, 0.5, knn["boost"])
}

func TestRankFusionBody(t *testing.T) {
	t.Parallel()

	body := RankFusion{RankConstant: 60, RankWindowSize: 2}.Body(Request{
		Text: "salt", Vector: []float32{1, 0}, K: 5, NumCandidates: 1,
	})
	require.NotContains(t, body, "query")
	require.NotContains(t, body, "knn")

	rrf := body["retriever"].(map[string]any)["rrf"].(map[string]any)
	require.Equal(t, 60, rrf["rank_constant"])
	require.Equal(t, 5, rrf["rank_window_size"], "window never smaller than k")

	retrievers := rrf["retrievers"].([]any)
	require.Len(t, retrievers, 2)
	standard := retrievers[0].(map[string]any)["standard"].(map[string]any)
	match := standard["query"].(map[string]any)["multi_match"].(map[string]any)
	require.NotContains(t, match, "boost")

	knn := retrievers[1].(map[string]any)["knn"].(map[string]any)
	require.Equal(t, 5, knn["num_candidates"], "candidates never fewer than k")
	require.NotContains(t, knn, "boost")
}

func TestVectorOnlyBody(t *testing.T) {
	t.Parallel()

	body := VectorOnly{}.Body(Request{Text: "ignored", Vector: []float32{1}, K: 3, NumCandidates: 50})
	require.NotContains(t, body, "query")
	require.Equal(t, 50, body["knn"].(map[string]any)["num_candidates"])
}
