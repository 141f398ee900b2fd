package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/pkg/ingest"
	"github.com/xhad/newschat/server"
)

type fakeChat struct {
	sessions  map[string][]models.Message
	reply     string
	fragments []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		sessions: make(map[string][]models.Message),
		reply:    "The summit concluded yesterday.",
	}
}

func (f *fakeChat) CreateSession(_ context.Context) (string, error) {
	id := uuid.NewString()
	f.sessions[id] = []models.Message{}
	return id, nil
}

func (f *fakeChat) Messages(_ context.Context, id string) ([]models.Message, error) {
	return f.sessions[id], nil
}

func (f *fakeChat) Clear(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeChat) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.sessions[id]
	return ok, nil
}

func (f *fakeChat) ProcessMessage(_ context.Context, id, content string) (models.Message, error) {
	user := models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: content, Timestamp: time.Now().UTC()}
	assistant := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   f.reply,
		Timestamp: time.Now().UTC(),
		Meta:      map[string]interface{}{"relevant_articles": []string{"a1", "a2"}},
	}
	f.sessions[id] = append(f.sessions[id], user, assistant)
	return assistant, nil
}

func (f *fakeChat) ProcessMessageStream(ctx context.Context, id, content string) (<-chan string, error) {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, frag := range f.fragments {
			ch <- frag
		}
	}()
	return ch, nil
}

type fakeIngester struct {
	summary ingest.Summary
	err     error
	runs    int
}

func (f *fakeIngester) Run(_ context.Context) (ingest.Summary, error) {
	f.runs++
	return f.summary, f.err
}

func newTestServer(chat server.ChatService, pipeline server.Ingester, streaming bool) *httptest.Server {
	srv := server.New(server.Config{
		CORSOrigins: []string{"http://localhost:3000"},
		Streaming:   streaming,
	}, chat, pipeline)
	return httptest.NewServer(srv.Router())
}

func TestCreateAndFetchSession(t *testing.T) {
	ts := newTestServer(newFakeChat(), nil, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/chat/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessionID string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessionID))
	assert.NotEmpty(t, sessionID)

	resp, err = http.Get(ts.URL + "/api/v1/chat/sessions/" + sessionID + "/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Messages)
}

func TestUnknownSessionReturns404(t *testing.T) {
	ts := newTestServer(newFakeChat(), nil, false)
	defer ts.Close()

	cases := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/chat/sessions/nope/messages", ""},
		{http.MethodDelete, "/api/v1/chat/sessions/nope", ""},
		{http.MethodPost, "/api/v1/chat/sessions/nope/messages", `{"content":"hi"}`},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, ts.URL+tc.path, strings.NewReader(tc.body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Equal(t, "Session not found", body["error"])
	}
}

func TestPostMessage(t *testing.T) {
	chat := newFakeChat()
	ts := newTestServer(chat, nil, false)
	defer ts.Close()

	sessionID, _ := chat.CreateSession(context.Background())

	payload := bytes.NewBufferString(`{"content":"What happened at the summit?"}`)
	resp, err := http.Post(ts.URL+"/api/v1/chat/sessions/"+sessionID+"/messages", "application/json", payload)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assistant models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assistant))
	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "The summit concluded yesterday.", assistant.Content)
	assert.NotNil(t, assistant.Meta["relevant_articles"])
}

func TestPostMessageEmptyContent(t *testing.T) {
	chat := newFakeChat()
	ts := newTestServer(chat, nil, false)
	defer ts.Close()

	sessionID, _ := chat.CreateSession(context.Background())

	resp, err := http.Post(ts.URL+"/api/v1/chat/sessions/"+sessionID+"/messages",
		"application/json", bytes.NewBufferString(`{"content":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearSession(t *testing.T) {
	chat := newFakeChat()
	ts := newTestServer(chat, nil, false)
	defer ts.Close()

	sessionID, _ := chat.CreateSession(context.Background())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/chat/sessions/"+sessionID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Session cleared successfully", body["message"])

	exists, _ := chat.Exists(context.Background(), sessionID)
	assert.False(t, exists)
}

func TestIngestEndpoint(t *testing.T) {
	pipeline := &fakeIngester{summary: ingest.Summary{Articles: 3, Chunks: 9, Stored: 9}}
	ts := newTestServer(newFakeChat(), pipeline, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/news/ingest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, pipeline.runs)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "News ingestion completed successfully", body["message"])
}

func TestIngestEndpointFailure(t *testing.T) {
	pipeline := &fakeIngester{err: errors.New("vector store unavailable")}
	ts := newTestServer(newFakeChat(), pipeline, false)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/news/ingest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(newFakeChat(), nil, false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	ts := newTestServer(newFakeChat(), nil, false)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example.com")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts := newTestServer(newFakeChat(), nil, false)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/chat/ws/nope"), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4004, closeErr.Code)
	assert.Equal(t, "Session not found", closeErr.Text)
}

func TestWebSocketChat(t *testing.T) {
	chat := newFakeChat()
	ts := newTestServer(chat, nil, false)
	defer ts.Close()

	sessionID, _ := chat.CreateSession(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/chat/ws/"+sessionID), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("any news?")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "The summit concluded yesterday.", string(data))
}

func TestWebSocketStreaming(t *testing.T) {
	chat := newFakeChat()
	chat.fragments = []string{"The summit ", "concluded ", "yesterday."}
	ts := newTestServer(chat, nil, true)
	defer ts.Close()

	sessionID, _ := chat.CreateSession(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/api/v1/chat/ws/"+sessionID), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("any news?")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []string
	for i := 0; i < 3; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"The summit ", "concluded ", "yesterday."}, got)
}
