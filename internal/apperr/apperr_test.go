package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthorized("Unauthorized"), http.StatusUnauthorized},
		{Forbidden("Only author can delete comment"), http.StatusForbidden},
		{Invalid("Invalid payload"), http.StatusBadRequest},
		{NotFound("Memo not found"), http.StatusNotFound},
		{TooMany("Too many attempts"), http.StatusTooManyRequests},
		{Internal("Failed to load memos", errors.New("conn reset")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("User not found")), http.StatusNotFound},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Forbidden("Only admin can set answer"))
	require.ErrorIs(t, err, ErrForbidden)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestMessage_HidesCause(t *testing.T) {
	err := Internal("Failed to delete user", errors.New("pq: deadlock detected"))
	require.Equal(t, "Failed to delete user", Message(err))
	require.Contains(t, err.Error(), "deadlock")
	require.Equal(t, "Internal error", Message(errors.New("boom")))
}
