package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/livechat/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "validation error maps to 400",
			err:      services.NewValidationError("content", "is required"),
			wantCode: http.StatusBadRequest,
			wantMsg:  "content",
		},
		{
			name:     "not found maps to 404",
			err:      services.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantMsg:  "not found",
		},
		{
			name:     "session closed maps to 409",
			err:      services.ErrSessionClosed,
			wantCode: http.StatusConflict,
			wantMsg:  "session is closed",
		},
		{
			name:     "already exists maps to 409",
			err:      services.ErrAlreadyExists,
			wantCode: http.StatusConflict,
			wantMsg:  "already exists",
		},
		{
			name:     "wrapped sentinel still maps",
			err:      fmt.Errorf("loading session: %w", services.ErrNotFound),
			wantCode: http.StatusNotFound,
			wantMsg:  "not found",
		},
		{
			name:     "unknown error maps to 500",
			err:      fmt.Errorf("connection reset"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.wantCode, he.Code)
			assert.Contains(t, he.Message, tt.wantMsg)
		})
	}
}
