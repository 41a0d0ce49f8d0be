package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/livechat/pkg/database"
	"github.com/codeready-toolchain/livechat/pkg/events"
	"github.com/codeready-toolchain/livechat/pkg/models"
	"github.com/codeready-toolchain/livechat/pkg/services"
)

// Server is the HTTP API server. It exposes the REST endpoints for
// session and message operations and the WebSocket endpoints for the
// per-session and notification streams.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	db          *database.Client
	sessions    *services.SessionService
	messages    *services.MessageService
	connManager *events.ConnectionManager
}

// NewServer creates the API server and registers all routes.
func NewServer(db *database.Client, sessions *services.SessionService, messages *services.MessageService, connManager *events.ConnectionManager) *Server {
	s := &Server{
		db:          db,
		sessions:    sessions,
		messages:    messages,
		connManager: connManager,
	}

	e := echo.New()
	e.Use(securityHeaders())
	e.Use(requestLogger())

	e.GET("/api/v1/health", s.healthHandler)

	e.POST("/api/v1/sessions", s.createSessionHandler)
	e.GET("/api/v1/sessions", s.listSessionsHandler)
	e.GET("/api/v1/sessions/:id", s.getSessionHandler)
	e.POST("/api/v1/sessions/:id/messages", s.postMessageHandler)
	e.POST("/api/v1/sessions/:id/rating", s.rateSessionHandler)
	e.POST("/api/v1/sessions/:id/leave", s.leaveSessionHandler)
	e.POST("/api/v1/sessions/:id/admin/join", s.adminJoinHandler)
	e.POST("/api/v1/sessions/:id/admin/leave", s.adminLeaveHandler)

	e.GET("/ws/sessions/:id", s.sessionStreamHandler)
	e.GET("/ws/notifications", s.notificationStreamHandler)

	s.echo = e
	return s
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// SessionSnapshot implements events.SnapshotProvider. Loads the session
// and its full message history for the initial stream payload.
func (s *Server) SessionSnapshot(ctx context.Context, sessionID string) (*models.ChatSession, []models.ChatMessage, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}
