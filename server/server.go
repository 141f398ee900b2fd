// Package server exposes the chat and ingestion services over HTTP and
// WebSocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xhad/newschat/internal/models"
	"github.com/xhad/newschat/pkg/ingest"
)

// ChatService is the slice of the chat orchestrator the transport needs.
type ChatService interface {
	CreateSession(ctx context.Context) (string, error)
	Messages(ctx context.Context, sessionID string) ([]models.Message, error)
	Clear(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	ProcessMessage(ctx context.Context, sessionID, content string) (models.Message, error)
	ProcessMessageStream(ctx context.Context, sessionID, content string) (<-chan string, error)
}

// Ingester triggers a single ingestion pass.
type Ingester interface {
	Run(ctx context.Context) (ingest.Summary, error)
}

type Config struct {
	Host        string
	Port        int
	CORSOrigins []string
	Streaming   bool
}

type Server struct {
	config   Config
	chat     ChatService
	pipeline Ingester
	httpSrv  *http.Server
}

func New(config Config, chat ChatService, pipeline Ingester) *Server {
	s := &Server{
		config:   config,
		chat:     chat,
		pipeline: pipeline,
	}
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Router builds the route tree. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.CORSOrigins))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/chat", func(chat chi.Router) {
			chat.Post("/sessions", s.handleCreateSession)
			chat.Get("/sessions/{sessionID}/messages", s.handleGetMessages)
			chat.Delete("/sessions/{sessionID}", s.handleClearSession)
			chat.Post("/sessions/{sessionID}/messages", s.handleCreateMessage)
			chat.Get("/ws/{sessionID}", s.handleWebSocket)
		})
		api.Post("/news/ingest", s.handleIngest)
	})

	return r
}

func (s *Server) Start() error {
	log.Printf("[server] listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware allows the configured origins. An empty list allows none,
// a "*" entry allows any origin.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
