package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/pkg/chat"
	cfgPkg "github.com/xhad/newschat/pkg/config"
	"github.com/xhad/newschat/pkg/ingest"
	"github.com/xhad/newschat/pkg/llm"
	"github.com/xhad/newschat/pkg/processor"
	"github.com/xhad/newschat/pkg/scraper"
	"github.com/xhad/newschat/pkg/session"
	"github.com/xhad/newschat/pkg/store"
	"github.com/xhad/newschat/server"
)

// app holds every wired component for either serving or a one-shot
// ingestion pass.
type app struct {
	config       *cfgPkg.Config
	sessions     *session.Store
	embedder     *llm.Embedder
	chatEngine   *llm.ChatEngine
	vectorStore  *store.VectorStore
	scraper      *scraper.Scraper
	chunker      *processor.Processor
	sources      []models.Source
	pipeline     *ingest.Pipeline
	chatService  *chat.Service
	scrapedCount int32
}

func newApp(ctx context.Context, config *cfgPkg.Config) (*app, error) {
	a := &app{config: config}

	a.sessions = session.NewWithConfig(session.StoreConfig{
		Addr:        fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Username:    config.Redis.Username,
		Password:    config.Redis.Password,
		DB:          config.Redis.DB,
		TTL:         time.Duration(config.Session.TTLSeconds) * time.Second,
		MaxMessages: config.Session.MaxMessages,
	})
	if err := a.sessions.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a.embedder = llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey:     config.Embedding.APIKey,
		BaseURL:    config.Embedding.BaseURL,
		Model:      config.Embedding.Model,
		Dimensions: config.Database.VectorDim,
		BatchSize:  config.Embedding.BatchSize,
	})

	chatEngine, err := llm.NewChatEngine(ctx, llm.ChatConfig{
		APIKey:      config.LLM.APIKey,
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		TopP:        config.LLM.TopP,
		TopK:        config.LLM.TopK,
		MaxTokens:   config.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	a.chatEngine = chatEngine

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: config.Database.URL,
		TableName:  config.Database.TableName,
		VectorDim:  config.Database.VectorDim,
		BatchSize:  config.Database.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.vectorStore = vectorStore

	a.scraper = scraper.NewWithConfig(scraper.ScraperConfig{
		RequestDelay:         time.Duration(config.News.RequestDelaySeconds * float64(time.Second)),
		MaxArticlesPerSource: config.News.MaxArticlesPerSource,
		OnProgress: func(url string) {
			atomic.AddInt32(&a.scrapedCount, 1)
		},
	})

	chunker := processor.New()
	a.chunker = &chunker

	sources, err := scraper.LoadSources(config.News.SourcesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load news sources: %w", err)
	}
	a.sources = sources

	a.pipeline = ingest.NewPipeline(a.scraper, a.chunker, a.embedder, a.vectorStore, a.sources)

	a.chatService = chat.NewService(a.sessions, a.embedder, a.vectorStore, a.chatEngine,
		chat.ServiceConfig{TopK: config.Chat.TopK})

	return a, nil
}

func (a *app) Close() {
	if a.vectorStore != nil {
		a.vectorStore.Close()
	}
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			log.Printf("failed to close redis client: %v", err)
		}
	}
}

func serve(ctx context.Context, a *app, config *cfgPkg.Config) error {
	srv := server.New(server.Config{
		Host:        config.Server.Host,
		Port:        config.Server.Port,
		CORSOrigins: config.Server.CORSOrigins,
		Streaming:   config.Chat.Streaming,
	}, a.chatService, a.pipeline)

	if interval := config.News.UpdateIntervalSec; interval > 0 {
		go a.pipeline.RunEvery(ctx, time.Duration(interval)*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIngest(ctx context.Context, a *app) error {
	color.Blue("\nStarting news ingestion from %d sources\n", len(a.sources))

	scrapingBar := getProgressBar(-1, "Fetching articles...")
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				scrapingBar.Set(int(atomic.LoadInt32(&a.scrapedCount)))
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()

	articles := a.scraper.ScrapeSources(ctx, a.sources)
	close(done)
	scrapingBar.Finish()
	color.Green("\nFetched %d articles\n", len(articles))

	if len(articles) == 0 {
		color.Yellow("Nothing to ingest\n")
		return nil
	}

	chunks := a.chunker.Process(articles)
	color.Green("Chunked into %d passages\n", len(chunks))

	texts := make([]string, len(chunks))
	metas := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = c.Meta()
	}

	embeddingBar := getProgressBar(len(chunks), "Embedding passages...")
	embeddings, err := a.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed passages: %w", err)
	}
	embeddingBar.Set(len(chunks))
	embeddingBar.Finish()

	storageBar := getProgressBar(len(chunks), "Storing in vector database...")
	ids, err := a.vectorStore.Store(ctx, texts, embeddings, metas)
	if err != nil {
		return fmt.Errorf("failed to store passages: %w", err)
	}
	storageBar.Set(len(ids))
	storageBar.Finish()

	color.Green("\nIngestion complete: %d passages stored\n", len(ids))
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
