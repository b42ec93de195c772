package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrRerankerUnavailable signals that no reranker is configured or the
// service cannot be reached. Callers degrade to fused-score ordering;
// they must never fail the query over it.
var ErrRerankerUnavailable = errors.New("reranker unavailable")

// DefaultRerankModel is the cross-encoder used for second-stage scoring
const DefaultRerankModel = "jina-reranker-v2-base-multilingual"

// RerankResult is one scored candidate, referencing the input by index
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores query/candidate pairs with a cross-encoder
type Reranker interface {
	// Rerank scores every candidate against the query and returns
	// results sorted by descending relevance
	Rerank(ctx context.Context, query string, candidates []string) ([]RerankResult, error)

	// Available reports whether the reranker can serve calls
	Available() bool
}

// JinaReranker calls the Jina rerank API
type JinaReranker struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewJinaReranker creates a reranker from an API key, falling back to
// the environment. A missing key yields a non-nil reranker that reports
// unavailable, so wiring stays unconditional.
func NewJinaReranker(apiKey string) *JinaReranker {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	return &JinaReranker{
		apiKey:     apiKey,
		model:      DefaultRerankModel,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Available reports whether an API key is configured
func (r *JinaReranker) Available() bool {
	return r.apiKey != ""
}

// Rerank scores candidates against the query
func (r *JinaReranker) Rerank(ctx context.Context, query string, candidates []string) ([]RerankResult, error) {
	if !r.Available() {
		return nil, ErrRerankerUnavailable
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	reqBody := map[string]interface{}{
		"model":     r.model,
		"query":     query,
		"documents": candidates,
		"top_n":     len(candidates),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.jina.ai/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankerUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: api error %d: %s", ErrRerankerUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, len(apiResp.Results))
	for i, res := range apiResp.Results {
		results[i] = RerankResult{Index: res.Index, Score: res.RelevanceScore}
	}
	return results, nil
}
