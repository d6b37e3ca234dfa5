package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("list: %w", BadRequest("Could not find articles", cause))

	require.True(t, IsBadRequest(err))
	require.False(t, IsAccessDenied(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection reset")

	require.True(t, IsAccessDenied(AccessDenied("nope")))
	require.False(t, IsBadRequest(errors.New("plain")))
}

func TestWriteErrorUnknownIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("secret detail"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret detail")
}
