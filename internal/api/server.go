// Package api exposes the HTTP surface: the WebSocket upgrade endpoint and
// the read-only snapshot endpoints.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"docroom/internal/session"
	"docroom/internal/storage"
)

// Server handles HTTP requests for the collaboration service.
type Server struct {
	manager  *session.Manager
	store    storage.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader

	maxConnections int
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Manager        *session.Manager
	Store          storage.Store
	Logger         *slog.Logger
	MaxConnections int
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxConnections := cfg.MaxConnections
	if maxConnections <= 0 {
		maxConnections = session.DefaultMaxConnections
	}

	return &Server{
		manager:        cfg.Manager,
		store:          cfg.Store,
		logger:         logger,
		maxConnections: maxConnections,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // Identity arrives resolved; origin policy is not ours.
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}/collaborators", s.handleGetCollaborators).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}/history", s.handleGetHistory).Methods(http.MethodGet)
	r.HandleFunc("/ws/{id}", s.handleWebSocket).Methods(http.MethodGet)

	return requestLogging(s.logger)(r)
}
