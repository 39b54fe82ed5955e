package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/EmpoweredVote/memoboard/internal/auth"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
	"github.com/EmpoweredVote/memoboard/internal/store/memstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store   *memstore.Store
	clock   *testClock
	handler *auth.Handler
	router  http.Handler
	user    models.User
}

const testPassword = "correct-horse"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	s := memstore.New()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	user := models.User{Username: "alice", PasswordHash: hash, DisplayName: "Alice", Role: models.RoleUser, CreatedAt: clock.Now()}
	require.NoError(t, s.CreateUser(context.Background(), &user))

	h := auth.NewHandler(auth.Deps{
		Store:      s,
		Limiter:    ratelimit.New(clock.Now),
		Cookies:    auth.Cookies{Name: "sid", MaxAge: 14 * 86400},
		SessionTTL: 14 * 24 * time.Hour,
		Clock:      clock.Now,
	})

	r := chi.NewRouter()
	r.Mount("/api/auth", auth.SetupRoutes(h))
	return &fixture{store: s, clock: clock, handler: h, router: r, user: user}
}

func (f *fixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "198.51.100.1:1234"
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: token})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatalf("no sid cookie in response")
	return nil
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec).Value
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["error"].(string)
	return msg
}

func TestLogin_SetsCookieThatResolves(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":" alice ","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	c := sessionCookie(t, rec)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 14*86400, c.MaxAge)
	require.False(t, c.Secure)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, f.user.ID, body["id"])
	require.Equal(t, "Alice", body["display_name"])
	require.Equal(t, "user", body["role"])

	u, err := f.handler.Resolver().Resolve(context.Background(), c.Value)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, f.user.ID, u.ID)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-password"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid credentials", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/auth/login", `{"username":"nobody","password":"whatever1"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid credentials", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/auth/login", `{"username":"alice"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid payload", errorOf(t, rec))

	rec = f.do(http.MethodPost, "/api/auth/login", `not json`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 8; i++ {
		rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"nope-nope"}`, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "Too many attempts", errorOf(t, rec))
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	f.clock.Advance(time.Minute)
	rec = f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Unauthorized", errorOf(t, rec))

	token := f.login(t)
	rec = f.do(http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestExpiredSessionIsRemoved(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	f.clock.Advance(14 * 24 * time.Hour)

	rec := f.do(http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := f.store.SessionWithUser(context.Background(), token)
	require.Error(t, err, "expired session row is deleted on sight")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code, "logout without a session still succeeds")

	token := f.login(t)
	rec = f.do(http.MethodPost, "/api/auth/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Less(t, sessionCookie(t, rec).MaxAge, 0)

	rec = f.do(http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	other := f.login(t)

	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{"missing field", `{"current_password":"x","new_password":"abcdefgh"}`, 400, "Invalid payload"},
		{"too short", `{"current_password":"x","new_password":"short","confirm_password":"short"}`, 400, "Password must be at least 8 characters"},
		{"mismatch", `{"current_password":"x","new_password":"abcdefgh","confirm_password":"abcdefgX"}`, 400, "Passwords do not match"},
		{"wrong current", `{"current_password":"x","new_password":"abcdefgh","confirm_password":"abcdefgh"}`, 400, "Current password is incorrect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/auth/change-password", tt.body, token)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.message, errorOf(t, rec))
		})
	}

	rec := f.do(http.MethodPost, "/api/auth/change-password",
		`{"current_password":"`+testPassword+`","new_password":"new-password-1","confirm_password":"new-password-1"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Less(t, sessionCookie(t, rec).MaxAge, 0)

	for _, tok := range []string{token, other} {
		u, err := f.handler.Resolver().Resolve(context.Background(), tok)
		require.NoError(t, err)
		require.Nil(t, u, "every session of the user is revoked")
	}

	rec = f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"new-password-1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword_LongPassword(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	long := strings.Repeat("x", 100)

	rec := f.do(http.MethodPost, "/api/auth/change-password",
		`{"current_password":"`+testPassword+`","new_password":"`+long+`","confirm_password":"`+long+`"}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"`+long+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestChangePassword_RateLimitedPerUser(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	body := `{"current_password":"wrong","new_password":"abcdefgh","confirm_password":"abcdefgh"}`
	for i := 0; i < 6; i++ {
		rec := f.do(http.MethodPost, "/api/auth/change-password", body, token)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := f.do(http.MethodPost, "/api/auth/change-password", body, token)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
