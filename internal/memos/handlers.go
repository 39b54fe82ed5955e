package memos

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/memoboard/internal/apperr"
	"github.com/EmpoweredVote/memoboard/internal/httpx"
	"github.com/EmpoweredVote/memoboard/internal/models"
	"github.com/EmpoweredVote/memoboard/internal/policy"
	"github.com/EmpoweredVote/memoboard/internal/store"
	"github.com/EmpoweredVote/memoboard/internal/utils"
	"github.com/EmpoweredVote/memoboard/internal/validate"
)

const (
	maxTitle    = 120
	maxBody     = 2000
	maxCategory = 20
	maxStatus   = 10
	maxComment  = 1500
)

var errMemoNotFound = apperr.NotFound("Memo not found")

type Handler struct {
	store store.Store
	now   utils.Clock
}

func NewHandler(s store.Store, now utils.Clock) *Handler {
	if now == nil {
		now = utils.Now
	}
	return &Handler{store: s, now: now}
}

// actor returns the identity placed on the context by SessionMiddleware.
func actor(r *http.Request) *models.UserPublic {
	u, _ := utils.GetUserFromContext(r.Context())
	return u
}

type listResponse struct {
	Memos      []models.Memo `json:"memos"`
	NextCursor *string       `json:"nextCursor"`
}

func (h *Handler) ListMemos(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if err := policy.Allow(u, policy.MemoRead, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	filter := ParseListQuery(r.URL.Query(), u.ID)
	memos, err := h.store.ListMemos(r.Context(), filter)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load memos", err))
		return
	}

	resp := listResponse{Memos: memos, NextCursor: NextCursor(memos, filter.Limit)}
	if resp.Memos == nil {
		resp.Memos = []models.Memo{}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if err := policy.Allow(u, policy.MemoRead, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	counts, err := h.store.CountMemos(r.Context(), ParseCountQuery(r.URL.Query()), u.ID)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load counts", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if err := policy.Allow(u, policy.MemoCreate, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	body, _ := httpx.DecodeBody(r)
	title, okTitle := validate.OptionalString(body.Get("title"), maxTitle)
	text, okBody := validate.OptionalString(body.Get("body"), maxBody)
	category, okCat := validate.OptionalString(body.Get("category"), maxCategory)
	if !okTitle || !okBody || !okCat || !validate.IsCategory(category) {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}

	now := h.now()
	m := models.Memo{
		ID:        utils.GenerateUUID(),
		AuthorID:  u.ID,
		Title:     title,
		Body:      text,
		Category:  category,
		Status:    models.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateMemo(r.Context(), &m); err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to create memo", err))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, m)
}

// loadMemo writes the 404 or 500 itself and returns nil in that case.
func (h *Handler) loadMemo(w http.ResponseWriter, r *http.Request) *models.Memo {
	m, err := h.store.MemoByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, errMemoNotFound)
		return nil
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load memo", err))
		return nil
	}
	return m
}

type memoDetail struct {
	Memo     *models.Memo     `json:"memo"`
	Comments []models.Comment `json:"comments"`
}

func (h *Handler) GetMemo(w http.ResponseWriter, r *http.Request) {
	if err := policy.Allow(actor(r), policy.MemoRead, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	m := h.loadMemo(w, r)
	if m == nil {
		return
	}

	comments, err := h.store.CommentsForMemo(r.Context(), m.ID)
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load comments", err))
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	httpx.WriteJSON(w, http.StatusOK, memoDetail{Memo: m, Comments: comments})
}

func (h *Handler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	m := h.loadMemo(w, r)
	if m == nil {
		return
	}
	if err := policy.Allow(u, policy.MemoUpdate, policy.Owned(m.AuthorID)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	body, _ := httpx.DecodeBody(r)
	now := h.now()
	update := store.MemoUpdate{UpdatedAt: now}

	if title, ok := validate.OptionalString(body.Get("title"), maxTitle); ok {
		update.Title = &title
	}
	if text, ok := validate.OptionalString(body.Get("body"), maxBody); ok {
		update.Body = &text
	}
	if category, ok := validate.OptionalString(body.Get("category"), maxCategory); ok {
		if !validate.IsCategory(category) {
			httpx.Error(w, r, apperr.Invalid("Invalid category"))
			return
		}
		update.Category = &category
	}
	if status, ok := validate.OptionalString(body.Get("status"), maxStatus); ok {
		if !validate.IsStatus(status) {
			httpx.Error(w, r, apperr.Invalid("Invalid status"))
			return
		}
		if err := policy.Allow(u, policy.MemoSetStatus, policy.Owned(m.AuthorID)); err != nil {
			httpx.Error(w, r, err)
			return
		}
		update.Status = &status
		if status == models.StatusSolved {
			update.SolvedAt = &now
		}
	}

	updated, err := h.store.UpdateMemo(r.Context(), m.ID, update)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, errMemoNotFound)
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to update memo", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	m := h.loadMemo(w, r)
	if m == nil {
		return
	}
	if err := policy.Allow(u, policy.MemoDelete, policy.Owned(m.AuthorID)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := h.store.DeleteMemo(r.Context(), m.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.Internal("Failed to delete memo", err))
		return
	}
	httpx.OK(w)
}
