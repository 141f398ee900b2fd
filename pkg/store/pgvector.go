package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/newschat/internal/models"
)

// ErrInputMismatch signals a malformed internal call where the texts,
// embeddings and metadata slices disagree in length.
var ErrInputMismatch = errors.New("texts, embeddings and metadata counts must match")

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "news_articles"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Store upserts text/embedding/metadata triples in batches and returns
// the generated record identifiers. Records are keyed by random ids,
// so re-ingesting the same content produces new rows.
func (vs *VectorStore) Store(ctx context.Context, texts []string, embeddings [][]float32, metas []map[string]interface{}) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d texts, %d embeddings", ErrInputMismatch, len(texts), len(embeddings))
	}
	if metas != nil && len(metas) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d metadata items", ErrInputMismatch, len(texts), len(metas))
	}

	ids := make([]string, len(texts))
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, text, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	for start := 0; start < len(texts); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %v", err)
		}

		for i := start; i < end; i++ {
			var meta map[string]interface{}
			if metas != nil {
				meta = metas[i]
			}

			_, err = tx.Exec(ctx, stmt,
				ids[i],
				sanitizeUTF8(texts[i]),
				pgvector.NewVector(embeddings[i]),
				meta,
			)
			if err != nil {
				tx.Rollback(ctx)
				return nil, fmt.Errorf("failed to insert record: %v", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %v", err)
		}
	}

	return ids, nil
}

// Search returns up to topK nearest neighbors by cosine similarity.
// Any backend failure yields an empty result list; callers cannot
// distinguish it from a genuinely empty index.
func (vs *VectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) []models.SearchResult {
	if len(queryEmbedding) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		SELECT id, text, 1 - (embedding <=> $1) AS score, metadata
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		log.Printf("[store] search failed: %v", err)
		return nil
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var (
			result models.SearchResult
			score  float64
		)
		if err := rows.Scan(&result.ID, &result.Text, &score, &result.Meta); err != nil {
			log.Printf("[store] search scan failed: %v", err)
			return nil
		}
		result.Score = float32(score)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		log.Printf("[store] search failed: %v", err)
		return nil
	}

	return results
}

// Has reports whether a record id exists in the index.
func (vs *VectorStore) Has(ctx context.Context, id string) bool {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", vs.config.TableName)

	var exists bool
	if err := vs.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false
	}
	return exists
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
