package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/pkg/chat"
)

type fakeSessions struct {
	mu       sync.Mutex
	created  []string
	appended map[string][]models.Message
	present  map[string]bool
	failNext bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		appended: make(map[string][]models.Message),
		present:  make(map[string]bool),
	}
}

func (f *fakeSessions) Create(_ context.Context, id string) error {
	f.created = append(f.created, id)
	f.present[id] = true
	return nil
}

func (f *fakeSessions) Messages(_ context.Context, id string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended[id], nil
}

func (f *fakeSessions) Append(_ context.Context, id string, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("redis down")
	}
	f.appended[id] = append(f.appended[id], msg)
	return nil
}

func (f *fakeSessions) messagesFor(id string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.appended[id]))
	copy(out, f.appended[id])
	return out
}

func (f *fakeSessions) Clear(_ context.Context, id string) error {
	delete(f.present, id)
	delete(f.appended, id)
	return nil
}

func (f *fakeSessions) Exists(_ context.Context, id string) (bool, error) {
	return f.present[id], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeVectorStore struct {
	results []models.SearchResult
	queried [][]float32
}

func (f *fakeVectorStore) Store(_ context.Context, texts []string, _ [][]float32, _ []map[string]interface{}) ([]string, error) {
	ids := make([]string, len(texts))
	return ids, nil
}

func (f *fakeVectorStore) Search(_ context.Context, embedding []float32, _ int) []models.SearchResult {
	f.queried = append(f.queried, embedding)
	return f.results
}

func (f *fakeVectorStore) Has(_ context.Context, id string) bool {
	for _, r := range f.results {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeVectorStore) Close() {}

type fakeGenerator struct {
	reply     string
	fragments []string
	contexts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, contexts []string) string {
	f.contexts = contexts
	return f.reply
}

func (f *fakeGenerator) GenerateStream(_ context.Context, _ string, contexts []string) <-chan string {
	f.contexts = contexts
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, frag := range f.fragments {
			ch <- frag
		}
	}()
	return ch
}

func newTestService(sessions *fakeSessions, store *fakeVectorStore, gen *fakeGenerator) *chat.Service {
	return chat.NewService(sessions,
		&fakeEmbedder{vector: []float32{0.1, 0.2}},
		store, gen, chat.ServiceConfig{TopK: 3})
}

func TestCreateSession(t *testing.T) {
	sessions := newFakeSessions()
	svc := newTestService(sessions, &fakeVectorStore{}, &fakeGenerator{})

	id, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{id}, sessions.created)
}

func TestProcessMessage(t *testing.T) {
	sessions := newFakeSessions()
	store := &fakeVectorStore{results: []models.SearchResult{
		{ID: "rec-1", Text: "Stocks rose sharply.", Score: 0.93},
		{ID: "rec-2", Text: "Bond yields fell.", Score: 0.88},
	}}
	gen := &fakeGenerator{reply: "Markets rallied."}
	svc := newTestService(sessions, store, gen)

	assistant, err := svc.ProcessMessage(context.Background(), "sess-1", "What happened to the markets?")
	require.NoError(t, err)

	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "Markets rallied.", assistant.Content)
	assert.NotEmpty(t, assistant.ID)
	assert.False(t, assistant.Timestamp.IsZero())
	assert.Equal(t, []string{"rec-1", "rec-2"}, assistant.Meta["relevant_articles"])

	// Both turns persisted in order.
	msgs := sessions.appended["sess-1"]
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "What happened to the markets?", msgs[0].Content)
	assert.Equal(t, assistant, msgs[1])

	// Retrieved texts were passed to the generator.
	assert.Equal(t, []string{"Stocks rose sharply.", "Bond yields fell."}, gen.contexts)
}

func TestProcessMessageEmbeddingFailure(t *testing.T) {
	sessions := newFakeSessions()
	store := &fakeVectorStore{}
	gen := &fakeGenerator{reply: "Some reply."}
	svc := chat.NewService(sessions,
		&fakeEmbedder{err: errors.New("embedding api down")},
		store, gen, chat.ServiceConfig{})

	// The turn still completes with an empty context set.
	assistant, err := svc.ProcessMessage(context.Background(), "sess-1", "anything")
	require.NoError(t, err)
	assert.Equal(t, "Some reply.", assistant.Content)
	assert.Empty(t, store.queried)
	assert.Empty(t, gen.contexts)
}

func TestProcessMessagePersistFailure(t *testing.T) {
	sessions := newFakeSessions()
	sessions.failNext = true
	svc := newTestService(sessions, &fakeVectorStore{}, &fakeGenerator{})

	_, err := svc.ProcessMessage(context.Background(), "sess-1", "hello")
	assert.Error(t, err)
}

func TestProcessMessageStream(t *testing.T) {
	sessions := newFakeSessions()
	gen := &fakeGenerator{fragments: []string{"Mar", "kets ", "rallied."}}
	svc := newTestService(sessions, &fakeVectorStore{}, gen)

	stream, err := svc.ProcessMessageStream(context.Background(), "sess-1", "markets?")
	require.NoError(t, err)

	var got []string
	for frag := range stream {
		got = append(got, frag)
	}
	assert.Equal(t, []string{"Mar", "kets ", "rallied."}, got)

	// The concatenated reply is persisted after the stream drains.
	assert.Eventually(t, func() bool {
		return len(sessions.messagesFor("sess-1")) == 2
	}, time.Second, 5*time.Millisecond)

	msgs := sessions.messagesFor("sess-1")
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Markets rallied.", msgs[1].Content)
}
