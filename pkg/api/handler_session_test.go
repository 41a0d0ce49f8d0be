package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

// Validation-only tests: each returns 400 before hitting the service.
// Happy paths are covered by the service tests against a real database.

func TestCreateSessionHandler_Validation(t *testing.T) {
	s := &Server{}

	t.Run("subject too long returns 400", func(t *testing.T) {
		body := `{"subject": "` + strings.Repeat("a", 501) + `"}`
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := s.createSessionHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok, "expected echo.HTTPError") {
				assert.Equal(t, http.StatusBadRequest, he.Code)
				assert.Contains(t, he.Message, "subject")
			}
		}
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{not json`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := s.createSessionHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, http.StatusBadRequest, he.Code)
			}
		}
	})
}

func TestSessionHandlers_MissingID(t *testing.T) {
	s := &Server{}

	handlers := map[string]func(*echo.Context) error{
		"get":         s.getSessionHandler,
		"rate":        s.rateSessionHandler,
		"leave":       s.leaveSessionHandler,
		"admin join":  s.adminJoinHandler,
		"admin leave": s.adminLeaveHandler,
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler(c)
			if assert.Error(t, err) {
				he, ok := err.(*echo.HTTPError)
				if assert.True(t, ok, "expected echo.HTTPError") {
					assert.Equal(t, http.StatusBadRequest, he.Code)
					assert.Contains(t, he.Message, "session id")
				}
			}
		})
	}
}
