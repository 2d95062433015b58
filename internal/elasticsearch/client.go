// Package elasticsearch adapts go-elasticsearch to the index and search packages.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/index"
	"github.com/JakeFAU/blog-search/internal/search"
)

// ErrIndexNotFound is returned when the target index does not exist.
var ErrIndexNotFound = errors.New("index not found")

// Config holds connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	// Transport overrides the HTTP transport; tests inject a fake here.
	Transport http.RoundTripper
}

// Client wraps an *es.Client with the operations the service needs.
type Client struct {
	es     *es.Client
	logger *zap.Logger
}

var (
	_ index.DocumentIndex = (*Client)(nil)
	_ search.Searcher     = (*Client)(nil)
)

// NewClient builds a Client from cfg. It does not contact the cluster; call Ping for that.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientConfig := es.Config{
		Addresses: cfg.Addresses,
		Transport: cfg.Transport,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}
	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: client, logger: logger}, nil
}

// Ping verifies the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.String())
	}
	return nil
}

// IndexExists reports whether name exists.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index existence: %w", err)
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("check index existence: unexpected status %d", res.StatusCode)
	}
}

// EnsureIndex implements index.DocumentIndex.
func (c *Client) EnsureIndex(ctx context.Context, name string, mapping map[string]any) (bool, error) {
	exists, err := c.IndexExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		c.logger.Debug("index already exists", zap.String("index", name))
		return false, nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return false, fmt.Errorf("marshal mapping: %w", err)
	}
	res, err := c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return false, fmt.Errorf("create index: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return false, fmt.Errorf("create index %s: %s", name, res.String())
	}
	c.logger.Info("created index", zap.String("index", name))
	return true, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// BulkUpsert implements index.DocumentIndex. Each document is written with an index action
// under its ID, replacing any previous version.
func (c *Client) BulkUpsert(ctx context.Context, name string, docs []index.Document) (index.BulkResult, error) {
	var result index.BulkResult
	if len(docs) == 0 {
		return result, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		meta := map[string]any{
			"index": map[string]any{
				"_index": name,
				"_id":    docs[i].ID,
			},
		}
		if err := enc.Encode(meta); err != nil {
			return result, fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return result, fmt.Errorf("encode document %s: %w", docs[i].URL, err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(name),
	)
	if err != nil {
		return result, fmt.Errorf("bulk request: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return result, fmt.Errorf("bulk indexing error: %s", res.String())
	}

	var decoded bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return result, fmt.Errorf("decode bulk response: %w", err)
	}
	for _, item := range decoded.Items {
		for _, outcome := range item {
			if outcome.Error != nil || outcome.Status >= http.StatusMultipleChoices {
				result.Failed++
				reason := ""
				if outcome.Error != nil {
					reason = outcome.Error.Type + ": " + outcome.Error.Reason
				}
				c.logger.Warn("bulk item failed",
					zap.String("id", outcome.ID),
					zap.Int("status", outcome.Status),
					zap.String("reason", reason),
				)
				continue
			}
			result.Indexed++
		}
	}
	return result, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  *float64 `json:"_score"`
			Source struct {
				URL          string `json:"url"`
				Title        string `json:"title"`
				CombinedText string `json:"combined_text"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search implements search.Searcher.
func (c *Client) Search(ctx context.Context, name string, body map[string]any) ([]search.Hit, error) {
	res, err := c.doSearch(ctx, name, body)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	var decoded searchResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]search.Hit, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		hits = append(hits, search.Hit{
			ID:           h.ID,
			Score:        h.Score,
			Title:        h.Source.Title,
			URL:          h.Source.URL,
			CombinedText: h.Source.CombinedText,
		})
	}
	return hits, nil
}

// Count returns the number of documents in name.
func (c *Client) Count(ctx context.Context, name string) (int64, error) {
	res, err := c.es.Count(c.es.Count.WithContext(ctx), c.es.Count.WithIndex(name))
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	defer closeBody(res)
	if res.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if res.IsError() {
		return 0, fmt.Errorf("count documents: %s", res.String())
	}

	var decoded struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return decoded.Count, nil
}

// Sample returns the source of one document in name, or false when the index is empty.
func (c *Client) Sample(ctx context.Context, name string) (map[string]any, bool, error) {
	res, err := c.doSearch(ctx, name, map[string]any{
		"size":  1,
		"query": map[string]any{"match_all": map[string]any{}},
	})
	if err != nil {
		return nil, false, err
	}
	defer closeBody(res)

	var decoded struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("decode sample response: %w", err)
	}
	if len(decoded.Hits.Hits) == 0 {
		return nil, false, nil
	}
	return decoded.Hits.Hits[0].Source, true, nil
}

func (c *Client) doSearch(ctx context.Context, name string, body map[string]any) (*esapi.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(name),
		c.es.Search.WithBody(bytes.NewReader(encoded)),
		c.es.Search.WithTrackTotalHits(false),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		closeBody(res)
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	if res.IsError() {
		msg := res.String()
		closeBody(res)
		return nil, fmt.Errorf("search error: %s", msg)
	}
	return res, nil
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
