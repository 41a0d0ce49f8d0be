package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// createSessionHandler handles POST /api/v1/sessions.
// Creates a waiting session owned by the calling user.
func (s *Server) createSessionHandler(c *echo.Context) error {
	var req models.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Subject) > 500 {
		return echo.NewHTTPError(http.StatusBadRequest, "subject exceeds maximum length of 500 characters")
	}

	session, err := s.sessions.Create(c.Request().Context(), extractAuthor(c), extractAuthorName(c), req.Subject)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

// listSessionsHandler handles GET /api/v1/sessions.
// Operators list sessions, optionally filtered by ?status=.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	status := models.SessionStatus(c.QueryParam("status"))

	sessions, err := s.sessions.List(c.Request().Context(), status)
	if err != nil {
		return mapServiceError(err)
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return c.JSON(http.StatusOK, sessions)
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	session, err := s.sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, session)
}

// rateSessionHandler handles POST /api/v1/sessions/:id/rating.
func (s *Server) rateSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req models.RateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := s.sessions.Rate(c.Request().Context(), sessionID, req.Rating, req.Feedback); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// leaveSessionHandler handles POST /api/v1/sessions/:id/leave.
// The user leaving closes the session; closing twice is a no-op.
func (s *Server) leaveSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.sessions.Close(c.Request().Context(), sessionID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// adminJoinHandler handles POST /api/v1/sessions/:id/admin/join.
// Assigns the calling operator and activates the session.
func (s *Server) adminJoinHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	err := s.sessions.AssignAdmin(c.Request().Context(), sessionID, extractAuthor(c), extractAuthorName(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// adminLeaveHandler handles POST /api/v1/sessions/:id/admin/leave.
// Unassigns the calling operator and returns the session to waiting.
func (s *Server) adminLeaveHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	err := s.sessions.UnassignAdmin(c.Request().Context(), sessionID, extractAuthor(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
