// Package ingest wires the scraper, chunker, embedder and vector store
// into a single news ingestion pipeline.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/internal/types"
)

// Summary reports what a single ingestion pass accomplished.
type Summary struct {
	Sources  int
	Articles int
	Chunks   int
	Stored   int
}

// Pipeline runs the fetch -> parse -> chunk -> embed -> store flow.
type Pipeline struct {
	scraper  types.ArticleScraper
	chunker  types.Chunker
	embedder types.Embedder
	store    types.VectorStore
	sources  []models.Source
}

func NewPipeline(scraper types.ArticleScraper, chunker types.Chunker, embedder types.Embedder, store types.VectorStore, sources []models.Source) *Pipeline {
	return &Pipeline{
		scraper:  scraper,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		sources:  sources,
	}
}

// Run executes one ingestion pass. Source and article level failures are
// logged and skipped inside the scraper; only a vector store write failure
// aborts the pass.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Sources: len(p.sources)}

	articles := p.scraper.ScrapeSources(ctx, p.sources)
	summary.Articles = len(articles)
	if len(articles) == 0 {
		log.Println("[ingest] no articles fetched, nothing to store")
		return summary, nil
	}

	chunks := p.chunker.Process(articles)
	summary.Chunks = len(chunks)
	if len(chunks) == 0 {
		return summary, nil
	}

	texts := make([]string, len(chunks))
	metas := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = c.Meta()
	}

	embeddings, err := p.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return summary, fmt.Errorf("failed to embed chunks: %w", err)
	}

	ids, err := p.store.Store(ctx, texts, embeddings, metas)
	if err != nil {
		return summary, fmt.Errorf("failed to store chunks: %w", err)
	}
	summary.Stored = len(ids)

	log.Printf("[ingest] pass complete: %d articles, %d chunks, %d stored",
		summary.Articles, summary.Chunks, summary.Stored)
	return summary, nil
}

// RunEvery runs an ingestion pass every interval until the context is
// cancelled. An interval of zero disables the runner. The first pass fires
// after one interval, not immediately.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				log.Printf("[ingest] scheduled pass failed: %v", err)
			}
		}
	}
}
