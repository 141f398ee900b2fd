package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// closeSessionNotFound is sent when a client opens a socket for a session
// the store does not know.
const closeSessionNotFound = 4004

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[server] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	exists, err := s.chat.Exists(r.Context(), sessionID)
	if err != nil || !exists {
		msg := websocket.FormatCloseMessage(closeSessionNotFound, "Session not found")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[server] websocket read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		if s.config.Streaming {
			s.streamReply(conn, sessionID, string(data))
		} else {
			s.sendReply(conn, sessionID, string(data))
		}
	}
}

func (s *Server) sendReply(conn *websocket.Conn, sessionID, content string) {
	assistant, err := s.chat.ProcessMessage(context.Background(), sessionID, content)
	if err != nil {
		log.Printf("[server] websocket message failed for session %s: %v", sessionID, err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(assistant.Content)); err != nil {
		log.Printf("[server] websocket write failed: %v", err)
	}
}

func (s *Server) streamReply(conn *websocket.Conn, sessionID, content string) {
	stream, err := s.chat.ProcessMessageStream(context.Background(), sessionID, content)
	if err != nil {
		log.Printf("[server] websocket stream failed for session %s: %v", sessionID, err)
		return
	}
	for fragment := range stream {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(fragment)); err != nil {
			log.Printf("[server] websocket write failed: %v", err)
			for range stream {
			}
			return
		}
	}
}
