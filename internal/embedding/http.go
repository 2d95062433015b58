package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	// BaseURL is the model server root, e.g. http://localhost:11434.
	BaseURL string
	// Model is the embedding model name served at BaseURL.
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// HTTPEmbedder calls an Ollama-compatible POST /api/embed endpoint.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEmbedder constructs an HTTPEmbedder. A nil client gets one with cfg.Timeout.
func NewHTTPEmbedder(cfg HTTPConfig, client *http.Client, logger *zap.Logger) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPEmbedder{cfg: cfg, client: client, logger: logger}
}

// Dimensions implements Embedder.
func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(decoded.Embeddings), len(texts))
	}
	if err := CheckDimensions(decoded.Embeddings, e.cfg.Dimensions); err != nil {
		return nil, err
	}

	e.logger.Debug("embedded texts",
		zap.Int("count", len(texts)),
		zap.String("model", e.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return decoded.Embeddings, nil
}
