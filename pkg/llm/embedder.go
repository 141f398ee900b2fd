package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const (
	defaultEmbeddingURL   = "https://api.jina.ai/v1/embeddings"
	defaultEmbeddingModel = "jina-embeddings-v2-base-en"
	defaultDimensions     = 768
	defaultEmbedBatchSize = 20
)

// Embedding tasks the Jina API distinguishes between.
const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// Embedder generates fixed-dimension embeddings via the Jina HTTP API.
// Failed batches degrade to zero vectors instead of failing the run,
// so the returned count always matches the input count.
type Embedder struct {
	config EmbedderConfig
	client *http.Client
}

func NewEmbedderWithConfig(config EmbedderConfig) *Embedder {
	if config.BaseURL == "" {
		config.BaseURL = defaultEmbeddingURL
	}
	if config.Model == "" {
		config.Model = defaultEmbeddingModel
	}
	if config.Dimensions == 0 {
		config.Dimensions = defaultDimensions
	}
	if config.BatchSize == 0 {
		config.BatchSize = defaultEmbedBatchSize
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Embedder{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (e *Embedder) Dimensions() int {
	return e.config.Dimensions
}

// EmbedPassages embeds texts for indexing.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, taskPassage), nil
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors := e.embed(ctx, []string{text}, taskQuery)
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	all := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := e.embedBatch(ctx, batch, task)
		if err != nil {
			// Substitute zero vectors so the run keeps going. Similarity
			// scores against these entries are meaningless.
			log.Printf("[embedder] batch of %d failed, substituting zero vectors: %v", len(batch), err)
			for range batch {
				all = append(all, make([]float32, e.config.Dimensions))
			}
			continue
		}
		all = append(all, vectors...)
	}

	return all
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string, task string) ([][]float32, error) {
	payload := map[string]interface{}{
		"model": e.config.Model,
		"input": batch,
		"task":  task,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.config.APIKey))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings error: status %d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(parsed.Data), len(batch))
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("missing embedding at index %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
