package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestError_MapsKinds(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/memos", nil)

	rec := httptest.NewRecorder()
	Error(rec, r, apperr.Forbidden("Only author can delete comment"))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Only author can delete comment", decodeError(t, rec))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	Error(rec, r, errors.New("pq: relation does not exist"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal error", decodeError(t, rec), "internal detail never leaks")
}

func TestTooMany_RoundsRetryAfterUp(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	rec := httptest.NewRecorder()
	TooMany(rec, r, 1500*time.Millisecond)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Equal(t, "Too many attempts", decodeError(t, rec))

	rec = httptest.NewRecorder()
	TooMany(rec, r, 0)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantOK bool
	}{
		{"object", `{"title":"x"}`, true},
		{"empty", ``, false},
		{"array", `[1,2]`, false},
		{"null", `null`, false},
		{"garbage", `{"title":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			b, ok := DecodeBody(r)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, "x", b.Get("title"))
			}
		})
	}
}
