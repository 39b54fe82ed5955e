package admin

import (
	"errors"
	"net/http"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/httpx"
	"github.com/EmpoweredVote/memoboard/internal/logging"
	"github.com/EmpoweredVote/memoboard/internal/metrics"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/policy"
	"github.com/EmpoweredVote/memoboard/internal/store"
)

var stepMessages = map[store.Step]string{
	store.StepLoadMemos:       "Failed to load user memos",
	store.StepMigrateComments: "Failed to migrate comments",
	store.StepMigrateMemos:    "Failed to migrate memos",
	store.StepMigrationNotes:  "Failed to add migration comments",
	store.StepMarkTitles:      "Failed to update memo titles",
	store.StepDeleteSessions:  "Failed to delete user",
	store.StepDeleteUser:      "Failed to delete user",
}

type deleteResponse struct {
	OK               bool  `json:"ok"`
	MigratedMemos    int   `json:"migrated_memos"`
	MigratedComments int64 `json:"migrated_comments"`
}

// DeleteUser hands the target's memos and comments to the system user and
// then removes the target. Nothing is changed unless every step succeeds.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := authorize(w, r, policy.AdminDeleteUser)
	if !ok {
		return
	}

	body, _ := httpx.DecodeBody(r)
	targetID, ok := body.Get("id").(string)
	if !ok || targetID == "" {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}
	if targetID == caller.ID {
		httpx.Error(w, r, apperr.Invalid("Cannot delete your own account"))
		return
	}

	sentinel, err := h.store.UserByUsername(r.Context(), models.SentinelUsername)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("System user not found", err))
		return
	}

	target, err := h.store.UserByID(r.Context(), targetID)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load user", err))
		return
	}
	if target.ID == sentinel.ID || target.Username == sentinel.Username {
		httpx.Error(w, r, apperr.Invalid("Cannot delete system user"))
		return
	}

	report, err := h.store.DeleteUserCascade(r.Context(), *target, *sentinel, h.now())
	if err != nil {
		httpx.Error(w, r, cascadeError(err))
		return
	}

	metrics.RecordUserDeleted()
	logging.FromContext(r.Context()).Info("user deleted",
		"user_id", target.ID,
		"by", caller.ID,
		"migrated_memos", len(report.MemoIDs),
		"migrated_comments", report.MigratedComments,
	)
	httpx.WriteJSON(w, http.StatusOK, deleteResponse{
		OK:               true,
		MigratedMemos:    len(report.MemoIDs),
		MigratedComments: report.MigratedComments,
	})
}

func cascadeError(err error) error {
	var stepErr *store.StepError
	if errors.As(err, &stepErr) {
		if stepErr.Step == store.StepDeleteUser && errors.Is(stepErr.Err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		if msg, ok := stepMessages[stepErr.Step]; ok {
			return apperr.Internal(msg, err)
		}
	}
	return apperr.Internal("Failed to delete user", err)
}
