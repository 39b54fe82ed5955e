package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/httpx"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/metrics"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/policy"
	"github.com/EmpoweredVote/memoboard/internal/ratelimit"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
	"github.com/EmpoweredVote/memoboard/internal/validate"
)

type Handler struct {
	store      store.Store
	resolver   *Resolver
	limiter    *ratelimit.Limiter
	cookies    Cookies
	sessionTTL time.Duration
	now        utils.Clock
}

type Deps struct {
	Store      store.Store
	Resolver   *Resolver
	Limiter    *ratelimit.Limiter
	Cookies    Cookies
	SessionTTL time.Duration
	Clock      utils.Clock
}

func NewHandler(d Deps) *Handler {
	now := d.Clock
	if now == nil {
		now = utils.Now
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = NewResolver(d.Store, now)
	}
	return &Handler{
		store:      d.Store,
		resolver:   resolver,
		limiter:    d.Limiter,
		cookies:    d.Cookies,
		sessionTTL: d.SessionTTL,
		now:        now,
	}
}

func (h *Handler) Resolver() *Resolver { return h.resolver }
func (h *Handler) Cookies() Cookies    { return h.cookies }

// limited reports whether the request was rejected by rule and, if so, has
// already written the 429.
func limited(w http.ResponseWriter, r *http.Request, l *ratelimit.Limiter, rule ratelimit.Rule, subject string) bool {
	res := l.Allow(rule, subject)
	if res.Allowed {
		return false
	}
	metrics.RecordRateLimited(rule.Name)
	logging.FromContext(r.Context()).Warn("rate limit exceeded", "rule", rule.Name, "retry_after", res.RetryAfter)
	httpx.TooMany(w, r, res.RetryAfter)
	return true
}

type identityResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func identity(u models.UserPublic) identityResponse {
	return identityResponse{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if limited(w, r, h.limiter, ratelimit.Login, ratelimit.ClientIP(r)) {
		return
	}

	body, _ := httpx.DecodeBody(r)
	username, okUser := validate.String(body.Get("username"), 50)
	password, okPass := validate.String(body.Get("password"), MaxPasswordLength)
	if !okUser || !okPass {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}

	user, err := h.store.UserByUsername(r.Context(), username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.Internal("Failed to load user", err))
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		httpx.Error(w, r, apperr.Unauthorized("Invalid credentials"))
		return
	}

	now := h.now()
	sess := models.Session{
		ID:        utils.GenerateUUID(),
		UserID:    user.ID,
		ExpiresAt: now.Add(h.sessionTTL),
		CreatedAt: now,
	}
	if err := h.store.CreateSession(r.Context(), &sess); err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to create session", err))
		return
	}

	logging.FromContext(r.Context()).Info("login", "user_id", user.ID)
	h.cookies.Set(w, sess.ID)
	httpx.WriteJSON(w, http.StatusOK, identity(user.Public()))
}

// Logout works with or without a valid session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.cookies.Token(r); token != "" {
		if err := h.store.DeleteSession(r.Context(), token); err != nil {
			logging.FromContext(r.Context()).Warn("failed to delete session on logout", "err", err)
		}
	}
	h.cookies.Clear(w)
	httpx.OK(w)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := utils.GetUserFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, apperr.ErrUnauthorized)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, identity(*u))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := utils.GetUserFromContext(r.Context())
	if err := policy.Allow(u, policy.PasswordChange, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if limited(w, r, h.limiter, ratelimit.PasswordChange, u.ID) {
		return
	}

	body, _ := httpx.DecodeBody(r)
	current, ok1 := validate.String(body.Get("current_password"), MaxPasswordLength)
	next, ok2 := validate.String(body.Get("new_password"), MaxPasswordLength)
	confirm, ok3 := validate.String(body.Get("confirm_password"), MaxPasswordLength)
	if !ok1 || !ok2 || !ok3 {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}
	if err := CheckNewPassword(next, confirm); err != nil {
		httpx.Error(w, r, err)
		return
	}

	user, err := h.store.UserByID(r.Context(), u.ID)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load user", err))
		return
	}
	if !CheckPassword(user.PasswordHash, current) {
		httpx.Error(w, r, apperr.Invalid("Current password is incorrect"))
		return
	}

	if err := SetPassword(r.Context(), h.store, user.ID, next); err != nil {
		httpx.Error(w, r, err)
		return
	}

	h.cookies.Clear(w)
	httpx.OK(w)
}

// CheckNewPassword applies the rules shared by self-service change and admin
// reset.
func CheckNewPassword(next, confirm string) error {
	if !LongEnough(next) {
		return apperr.Invalid("Password must be at least 8 characters")
	}
	if next != confirm {
		return apperr.Invalid("Passwords do not match")
	}
	return nil
}

// SetPassword hashes plain, stores it for userID and deletes all of that
// user's sessions.
func SetPassword(ctx context.Context, s store.Store, userID, plain string) error {
	hash, err := HashPassword(plain)
	if err != nil {
		return apperr.Internal("Failed to update password", err)
	}
	if err := s.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to update password", err)
	}
	n, err := s.DeleteUserSessions(ctx, userID)
	if err != nil {
		return apperr.Internal("Failed to revoke sessions", err)
	}
	logging.FromContext(ctx).Info("password changed", "user_id", userID, "sessions_revoked", n)
	return nil
}
