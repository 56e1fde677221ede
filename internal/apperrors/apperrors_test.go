package apperrors_test

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"guildchat-backend/internal/apperrors"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *apperrors.Error
		expected int
	}{
		{"validation", apperrors.Validation("bad"), http.StatusBadRequest},
		{"unauthenticated", apperrors.Unauthenticated("who"), http.StatusUnauthorized},
		{"forbidden", apperrors.Forbidden("no"), http.StatusForbidden},
		{"not found", apperrors.NotFound("gone"), http.StatusNotFound},
		{"conflict", apperrors.Conflict("taken"), http.StatusConflict},
		{"conflict answered as bad request", apperrors.Conflict("member").WithStatus(http.StatusBadRequest), http.StatusBadRequest},
		{"internal", apperrors.Internal(sql.ErrConnDone), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.HTTPStatus())
		})
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("loading server: %w", apperrors.NotFound("Server not found"))

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, errors.Is(err, apperrors.ErrForbidden))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, apperrors.Kind(""), apperrors.KindOf(nil))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	appErr := apperrors.From(sql.ErrConnDone)

	assert.Equal(t, apperrors.KindInternal, appErr.Kind)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
	assert.Nil(t, apperrors.From(nil))
}

func TestWithStatusKeepsOriginal(t *testing.T) {
	original := apperrors.Conflict("Channel name already exists in this server")
	changed := original.WithStatus(http.StatusBadRequest)

	assert.Equal(t, http.StatusConflict, original.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, changed.HTTPStatus())
	assert.True(t, errors.Is(changed, apperrors.ErrConflict))
}
