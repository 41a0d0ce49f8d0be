package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/livechat/pkg/models"
	"github.com/codeready-toolchain/livechat/pkg/services"
)

// maxMessageLength caps message content; larger payloads would be
// truncated on the NOTIFY path anyway.
const maxMessageLength = 100_000

// postMessageHandler handles POST /api/v1/sessions/:id/messages.
// Persists the message and publishes it on the session stream. The
// response is a bare acknowledgment; the authoritative copy arrives via
// the stream with the caller's local_id echoed.
func (s *Server) postMessageHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req models.PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if len(req.Content) > maxMessageLength {
		return echo.NewHTTPError(http.StatusBadRequest, "content exceeds maximum length of 100,000 characters")
	}

	session, err := s.sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	sender := resolveSender(c, session)
	msg, err := s.messages.AddMessage(c.Request().Context(), sessionID, sender, req)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message_id": msg.ID,
		"local_id":   msg.LocalID,
	})
}

// resolveSender classifies the caller: the assigned operator sends as
// support, everyone else as user.
func resolveSender(c *echo.Context, session *models.ChatSession) services.Sender {
	author := extractAuthor(c)
	kind := models.SenderUser
	if session.AssignedAdmin != "" && author == session.AssignedAdmin {
		kind = models.SenderSupport
	}
	return services.Sender{
		ID:   author,
		Name: extractAuthorName(c),
		Kind: kind,
	}
}
