package types

import (
	"context"

	"github.com/xhad/newschat/internal/models"
)

// Core interfaces
type Embedder interface {
	// EmbedPassages embeds texts for indexing. Batches that fail upstream
	// come back as zero vectors; the returned slice always matches the
	// input length.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single text for searching.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type VectorStore interface {
	Store(ctx context.Context, texts []string, embeddings [][]float32, metas []map[string]interface{}) ([]string, error)
	// Search returns up to topK nearest neighbors by cosine similarity.
	// Backend failures yield an empty slice, not an error.
	Search(ctx context.Context, embedding []float32, topK int) []models.SearchResult
	Has(ctx context.Context, id string) bool
	Close()
}

type SessionStore interface {
	Create(ctx context.Context, id string) error
	Messages(ctx context.Context, id string) ([]models.Message, error)
	Append(ctx context.Context, id string, msg models.Message) error
	Clear(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

type Generator interface {
	// Generate produces a reply for the query given retrieved context
	// passages. Upstream failures are swallowed into a fallback reply.
	Generate(ctx context.Context, query string, contexts []string) string
	// GenerateStream produces the reply as a finite sequence of
	// fragments. The channel closes when the model finishes or errors.
	GenerateStream(ctx context.Context, query string, contexts []string) <-chan string
}

type ArticleScraper interface {
	ScrapeSources(ctx context.Context, sources []models.Source) []models.Article
}

type Chunker interface {
	Process(articles []models.Article) []models.Chunk
}
