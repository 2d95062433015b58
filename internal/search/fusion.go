package search

import (
	"fmt"
	"strings"
)

// Fusion strategy names accepted by NewFusion.
const (
	FusionWeighted = "weighted"
	FusionRRF      = "rrf"
	FusionSemantic = "semantic"
)

// LexicalFields are the multi_match fields, title and tags unboosted.
var LexicalFields = []string{"combined_text^3", "title", "blog_tags"}

// VectorField is the dense vector searched by the knn clause.
const VectorField = "combined_text_vector"

// Request is everything a Fusion needs to build a search body.
type Request struct {
	Text          string
	Vector        []float32
	K             int
	NumCandidates int
}

// Fusion builds the search engine request that combines lexical and vector signals.
type Fusion interface {
	Name() string
	Body(req Request) map[string]any
}

// FusionConfig carries the tunables of every strategy.
type FusionConfig struct {
	LexicalBoost   float64
	VectorBoost    float64
	RankConstant   int
	RankWindowSize int
}

// NewFusion returns the strategy registered under name.
func NewFusion(name string, cfg FusionConfig) (Fusion, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case FusionWeighted, "":
		return WeightedBlend{LexicalBoost: cfg.LexicalBoost, VectorBoost: cfg.VectorBoost}, nil
	case FusionRRF:
		return RankFusion{RankConstant: cfg.RankConstant, RankWindowSize: cfg.RankWindowSize}, nil
	case FusionSemantic:
		return VectorOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown fusion strategy %q", name)
	}
}

// WeightedBlend adds boosted lexical and knn scores using the engine's native scoring.
type WeightedBlend struct {
	LexicalBoost float64
	VectorBoost  float64
}

// Name implements Fusion.
func (WeightedBlend) Name() string { return FusionWeighted }

// Body implements Fusion.
func (w WeightedBlend) Body(req Request) map[string]any {
	match := multiMatch(req.Text)
	match["boost"] = w.LexicalBoost
	knn := knnClause(req)
	knn["boost"] = w.VectorBoost
	return map[string]any{
		"size": req.K,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{"multi_match": match},
			},
		},
		"knn": knn,
	}
}

// RankFusion merges a lexical and a knn retriever with reciprocal rank fusion.
type RankFusion struct {
	RankConstant   int
	RankWindowSize int
}

// Name implements Fusion.
func (RankFusion) Name() string { return FusionRRF }

// Body implements Fusion.
func (r RankFusion) Body(req Request) map[string]any {
	rrf := map[string]any{
		"retrievers": []any{
			map[string]any{
				"standard": map[string]any{
					"query": map[string]any{"multi_match": multiMatch(req.Text)},
				},
			},
			map[string]any{"knn": knnClause(req)},
		},
	}
	if r.RankConstant > 0 {
		rrf["rank_constant"] = r.RankConstant
	}
	if r.RankWindowSize > 0 {
		window := r.RankWindowSize
		if window < req.K {
			window = req.K
		}
		rrf["rank_window_size"] = window
	}
	return map[string]any{
		"size":      req.K,
		"retriever": map[string]any{"rrf": rrf},
	}
}

// VectorOnly ranks by knn similarity alone; the lexical signal is ignored.
type VectorOnly struct{}

// Name implements Fusion.
func (VectorOnly) Name() string { return FusionSemantic }

// Body implements Fusion.
func (VectorOnly) Body(req Request) map[string]any {
	return map[string]any{
		"size": req.K,
		"knn":  knnClause(req),
	}
}

func multiMatch(text string) map[string]any {
	return map[string]any{
		"query":  text,
		"fields": LexicalFields,
		"type":   "best_fields",
	}
}

func knnClause(req Request) map[string]any {
	candidates := req.NumCandidates
	if candidates < req.K {
		candidates = req.K
	}
	return map[string]any{
		"field":          VectorField,
		"query_vector":   req.Vector,
		"k":              req.K,
		"num_candidates": candidates,
	}
}
