// Package account serves the signed-in user's own profile.
package account

import (
	"errors"
	"net/http"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/httpx"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/policy"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
	"github.com/EmpoweredVote/memoboard/internal/validate"
)

const maxDisplayName = 40

type Handler struct {
	store store.Store
}

func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

type profileResponse struct {
	OK          bool   `json:"ok"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := utils.GetUserFromContext(r.Context())
	if err := policy.Allow(u, policy.ProfileUpdate, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	body, _ := httpx.DecodeBody(r)
	displayName, ok := validate.String(body.Get("display_name"), maxDisplayName)
	if !ok {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}

	err := h.store.UpdateDisplayName(r.Context(), u.ID, displayName)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to update profile", err))
		return
	}

	logging.FromContext(r.Context()).Info("profile updated", "user_id", u.ID)
	httpx.WriteJSON(w, http.StatusOK, profileResponse{OK: true, DisplayName: displayName})
}
