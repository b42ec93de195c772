package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// Instruction prefixes for APIs without a native task parameter.
// Jina v3 takes the task as a request field; OpenAI gets the asymmetry
// through a document-side prefix only, queries go in unprefixed.
const documentInstruction = "Represent this legal provision for retrieval: "

// requestBuilder assembles a provider-specific embeddings call
type requestBuilder func(texts []string, task TaskType, model string) (url string, body map[string]interface{})

// httpProvider is the shared implementation behind the Jina and OpenAI
// embedders; the two differ only in endpoint, payload shape, and how
// the asymmetric task is expressed.
type httpProvider struct {
	name       string
	apiKey     string
	model      string
	dimension  int
	build      requestBuilder
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates a Jina AI embedder. Jina v3 supports the
// retrieval.passage / retrieval.query task natively.
func NewJinaProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	return &httpProvider{
		name:      ProviderJina,
		apiKey:    apiKey,
		model:     DefaultJinaModel,
		dimension: JinaDimension,
		build: func(texts []string, task TaskType, model string) (string, map[string]interface{}) {
			return "https://api.jina.ai/v1/embeddings", map[string]interface{}{
				"input": texts,
				"model": model,
				"task":  string(task),
			}
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

// NewOpenAIProvider creates an OpenAI embedder. OpenAI has no task
// parameter, so document texts carry an instruction prefix instead.
func NewOpenAIProvider(apiKey string, cache *Cache) (Embedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	return &httpProvider{
		name:      ProviderOpenAI,
		apiKey:    apiKey,
		model:     DefaultOpenAIModel,
		dimension: OpenAIDimension,
		build: func(texts []string, task TaskType, model string) (string, map[string]interface{}) {
			input := texts
			if task == TaskDocument {
				input = make([]string, len(texts))
				for i, t := range texts {
					input[i] = documentInstruction + t
				}
			}
			return "https://api.openai.com/v1/embeddings", map[string]interface{}{
				"input": input,
				"model": model,
			}
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

func (p *httpProvider) Embed(ctx context.Context, req Request) (*Embedding, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Task, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := p.EmbedBatch(ctx, BatchRequest{
		Texts: []string{req.Text},
		Task:  req.Task,
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

func (p *httpProvider) EmbedBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := validateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return p.callAPI(ctx, req.Texts, req.Task, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
	}

	if p.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(req.Task, req.Texts[i])
			emb.Hash = hash
			p.cache.Set(hash, emb)
		}
	}

	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

func (p *httpProvider) callAPI(ctx context.Context, texts []string, task TaskType, model string) ([]*Embedding, error) {
	url, reqBody := p.build(texts, task, model)

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     apiResp.Model,
		}
	}
	return embeddings, nil
}

func (p *httpProvider) Dimension() int   { return p.dimension }
func (p *httpProvider) Provider() string { return p.name }
func (p *httpProvider) Model() string    { return p.model }

func (p *httpProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic hash-derived embeddings without
// any network dependency. The vectors carry no semantics, but identical
// text always maps to the identical vector and the document and query
// sides stay distinct, which is exactly what pipeline and index tests
// need.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates the deterministic local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: "local-deterministic",
		cache: cache,
	}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, req Request) (*Embedding, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Task, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector := deterministicVector(string(req.Task)+"\x00"+req.Text, LocalDimension)

	emb := &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := validateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.Embed(ctx, Request{Text: text, Task: req.Task, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

// deterministicVector expands a seed string into a dense vector by
// chaining SHA-256 blocks.
func deterministicVector(seed string, dim int) []float32 {
	vector := make([]float32, dim)
	block := sha256.Sum256([]byte(seed))
	i := 0
	for i < dim {
		for b := 0; b+4 <= len(block) && i < dim; b += 4 {
			bits := binary.BigEndian.Uint32(block[b : b+4])
			vector[i] = float32(bits)/float32(math.MaxUint32) - 0.5
			i++
		}
		block = sha256.Sum256(block[:])
	}
	return vector
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return l.model }
func (l *LocalProvider) Close() error     { return nil }

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
