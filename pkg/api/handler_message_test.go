package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

func TestPostMessageHandler_Validation(t *testing.T) {
	// Routed through a real echo instance so the :id param is populated;
	// every case returns 400 before touching the service layer.
	s := &Server{}
	e := echo.New()
	e.POST("/api/v1/sessions/:id/messages", s.postMessageHandler)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	t.Run("empty content returns 400", func(t *testing.T) {
		rec := post("/api/v1/sessions/sess-1/messages", `{"content": ""}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "content is required")
	})

	t.Run("oversized content returns 400", func(t *testing.T) {
		body := `{"content": "` + strings.Repeat("a", maxMessageLength+1) + `"}`
		rec := post("/api/v1/sessions/sess-1/messages", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "maximum length")
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		rec := post("/api/v1/sessions/sess-1/messages", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResolveSender(t *testing.T) {
	newCtx := func(user string) *echo.Context {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-User", user)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec)
	}

	t.Run("assigned operator sends as support", func(t *testing.T) {
		session := &models.ChatSession{ID: "sess-1", AssignedAdmin: "op-1"}
		sender := resolveSender(newCtx("op-1"), session)
		assert.Equal(t, models.SenderSupport, sender.Kind)
		assert.Equal(t, "op-1", sender.ID)
	})

	t.Run("session owner sends as user", func(t *testing.T) {
		session := &models.ChatSession{ID: "sess-1", UserID: "user-1", AssignedAdmin: "op-1"}
		sender := resolveSender(newCtx("user-1"), session)
		assert.Equal(t, models.SenderUser, sender.Kind)
	})

	t.Run("unassigned session never classifies support", func(t *testing.T) {
		session := &models.ChatSession{ID: "sess-1"}
		sender := resolveSender(newCtx("op-1"), session)
		assert.Equal(t, models.SenderUser, sender.Kind)
	})
}
