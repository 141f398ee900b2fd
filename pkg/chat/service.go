package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/internal/types"
)

type ServiceConfig struct {
	// TopK is how many passages are retrieved per user message.
	TopK int
}

// Service orchestrates one chat turn: persist the user message,
// retrieve similar passages, generate a reply, persist and return it.
type Service struct {
	config    ServiceConfig
	sessions  types.SessionStore
	embedder  types.Embedder
	store     types.VectorStore
	generator types.Generator
}

func NewService(sessions types.SessionStore, embedder types.Embedder, store types.VectorStore, generator types.Generator, config ServiceConfig) *Service {
	if config.TopK == 0 {
		config.TopK = 3
	}

	return &Service{
		config:    config,
		sessions:  sessions,
		embedder:  embedder,
		store:     store,
		generator: generator,
	}
}

// CreateSession provisions a new empty session and returns its id.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.sessions.Create(ctx, id); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Messages returns the session transcript in append order.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]models.Message, error) {
	return s.sessions.Messages(ctx, sessionID)
}

// Clear deletes the session outright.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// Exists reports whether the session id is valid.
func (s *Service) Exists(ctx context.Context, sessionID string) (bool, error) {
	return s.sessions.Exists(ctx, sessionID)
}

// ProcessMessage runs one full chat turn and returns the persisted
// assistant message.
func (s *Service) ProcessMessage(ctx context.Context, sessionID, content string) (models.Message, error) {
	contexts, ids, err := s.prepare(ctx, sessionID, content)
	if err != nil {
		return models.Message{}, err
	}

	reply := s.generator.Generate(ctx, content, contexts)

	assistant := newMessage(models.RoleAssistant, reply)
	assistant.Meta = map[string]interface{}{"relevant_articles": ids}
	if err := s.sessions.Append(ctx, sessionID, assistant); err != nil {
		return models.Message{}, fmt.Errorf("failed to store assistant message: %w", err)
	}

	return assistant, nil
}

// ProcessMessageStream runs one chat turn, emitting reply fragments as
// the model produces them. The assistant message is persisted with the
// concatenated reply once the stream finishes.
func (s *Service) ProcessMessageStream(ctx context.Context, sessionID, content string) (<-chan string, error) {
	contexts, ids, err := s.prepare(ctx, sessionID, content)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)

		var reply string
		for fragment := range s.generator.GenerateStream(ctx, content, contexts) {
			reply += fragment
			out <- fragment
		}

		assistant := newMessage(models.RoleAssistant, reply)
		assistant.Meta = map[string]interface{}{"relevant_articles": ids}
		// Persistence failure here cannot reach the caller anymore;
		// the fragments are already on the wire.
		_ = s.sessions.Append(ctx, sessionID, assistant)
	}()

	return out, nil
}

// prepare persists the user message and retrieves context passages.
func (s *Service) prepare(ctx context.Context, sessionID, content string) (contexts []string, ids []string, err error) {
	user := newMessage(models.RoleUser, content)
	if err := s.sessions.Append(ctx, sessionID, user); err != nil {
		return nil, nil, fmt.Errorf("failed to store user message: %w", err)
	}

	var results []models.SearchResult
	queryVector, err := s.embedder.EmbedQuery(ctx, content)
	if err == nil {
		results = s.store.Search(ctx, queryVector, s.config.TopK)
	}

	contexts = make([]string, 0, len(results))
	ids = make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Text)
		ids = append(ids, r.ID)
	}
	return contexts, ids, nil
}

func newMessage(role, content string) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
