package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/middleware"
	"github.com/EmpoweredVote/memoboard/internal/models"
)

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
}

func cleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestPageGate(t *testing.T) {
	valid := mockResolver{user: &models.UserPublic{ID: "u1"}}
	stale := mockResolver{}

	tests := []struct {
		name         string
		resolver     mockResolver
		path         string
		cookie       string
		wantCode     int
		wantLocation string
		wantCleared  bool
	}{
		{"anon on root", stale, "/", "", http.StatusFound, "/login", false},
		{"anon on memo page", stale, "/memos/abc", "", http.StatusFound, "/login", false},
		{"anon on admin", stale, "/admin", "", http.StatusFound, "/login", false},
		{"anon on login", stale, "/login", "", http.StatusOK, "", false},
		{"anon on unprotected", stale, "/about", "", http.StatusOK, "", false},
		{"stale cookie on protected", stale, "/account", "tok", http.StatusFound, "/login", true},
		{"stale cookie on login", stale, "/login", "tok", http.StatusOK, "", true},
		{"valid cookie on login", valid, "/login", "tok", http.StatusFound, "/", false},
		{"valid cookie on protected", valid, "/memos", "tok", http.StatusOK, "", false},
		{"prefix is not a sub-path", stale, "/memosx", "", http.StatusOK, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := middleware.PageGate(tt.resolver, cookieName, clearCookie)
			rec := callWithCookie(t, mw, tt.path, tt.cookie)

			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			require.Equal(t, tt.wantCleared, cleared(rec))
		})
	}
}
