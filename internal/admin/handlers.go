// Package admin holds the user-management endpoints. Every route sits behind
// SessionMiddleware and AdminMiddleware.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/auth"
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

const (
	maxUsername    = 50
	maxDisplayName = 12
	maxRole        = 10
)

type Handler struct {
	store   store.Store
	limiter *ratelimit.Limiter
	now     utils.Clock
}

func NewHandler(s store.Store, limiter *ratelimit.Limiter, now utils.Clock) *Handler {
	if now == nil {
		now = utils.Now
	}
	return &Handler{store: s, limiter: limiter, now: now}
}

// authorize checks action for the caller and writes the error response when
// it is denied.
func authorize(w http.ResponseWriter, r *http.Request, action policy.Action) (*models.UserPublic, bool) {
	u, _ := utils.GetUserFromContext(r.Context())
	if err := policy.Allow(u, action, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return nil, false
	}
	return u, true
}

func (h *Handler) limited(w http.ResponseWriter, r *http.Request, rule ratelimit.Rule, subject string) bool {
	res := h.limiter.Allow(rule, subject)
	if res.Allowed {
		return false
	}
	metrics.RecordRateLimited(rule.Name)
	logging.FromContext(r.Context()).Warn("rate limit exceeded", "rule", rule.Name, "retry_after", res.RetryAfter)
	httpx.TooMany(w, r, res.RetryAfter)
	return true
}

type userSummary struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func summarize(u models.User) userSummary {
	return userSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, policy.AdminListUsers); !ok {
		return
	}

	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load users", err))
		return
	}

	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, summarize(u))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, policy.AdminCreateUser)
	if !ok {
		return
	}
	if h.limited(w, r, ratelimit.AdminCreate, caller.ID) {
		return
	}

	body, _ := httpx.DecodeBody(r)
	username, ok1 := validate.String(body.Get("username"), maxUsername)
	displayName, ok2 := validate.String(body.Get("display_name"), maxDisplayName)
	password, ok3 := validate.String(body.Get("password"), auth.MaxPasswordLength)
	role, ok4 := validate.String(body.Get("role"), maxRole)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}
	if !auth.LongEnough(password) {
		httpx.Error(w, r, apperr.Invalid("Password must be at least 8 characters"))
		return
	}
	if !validate.IsRole(role) {
		httpx.Error(w, r, apperr.Invalid("Invalid role"))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to create user", err))
		return
	}

	user := models.User{
		ID:           utils.GenerateUUID(),
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
		CreatedAt:    h.now(),
	}
	err = h.store.CreateUser(r.Context(), &user)
	if errors.Is(err, store.ErrConflict) {
		httpx.Error(w, r, apperr.Invalid("Username already exists"))
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to create user", err))
		return
	}

	logging.FromContext(r.Context()).Info("user created", "user_id", user.ID, "role", role, "by", caller.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": summarize(user)})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, policy.AdminResetPassword)
	if !ok {
		return
	}
	if h.limited(w, r, ratelimit.AdminReset, caller.ID) {
		return
	}

	body, _ := httpx.DecodeBody(r)
	next, ok1 := validate.String(body.Get("new_password"), auth.MaxPasswordLength)
	confirm, ok2 := validate.String(body.Get("confirm_password"), auth.MaxPasswordLength)
	if !ok1 || !ok2 {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}
	if err := auth.CheckNewPassword(next, confirm); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := auth.SetPassword(r.Context(), h.store, chi.URLParam(r, "id"), next); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.OK(w)
}
