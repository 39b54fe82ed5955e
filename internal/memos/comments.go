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

var errCommentNotFound = apperr.NotFound("Comment not found")

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	if err := policy.Allow(u, policy.CommentCreate, policy.Resource{}); err != nil {
		httpx.Error(w, r, err)
		return
	}

	body, _ := httpx.DecodeBody(r)
	text, ok := validate.OptionalString(body.Get("body"), maxComment)
	if !ok {
		httpx.Error(w, r, apperr.ErrInvalid)
		return
	}

	m := h.loadMemo(w, r)
	if m == nil {
		return
	}

	now := h.now()
	c := models.Comment{
		ID:        utils.GenerateUUID(),
		MemoID:    m.ID,
		AuthorID:  u.ID,
		Body:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := h.store.CreateComment(r.Context(), &c)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, errMemoNotFound)
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to add comment", err))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) loadComment(w http.ResponseWriter, r *http.Request) *models.Comment {
	c, err := h.store.CommentByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, errCommentNotFound)
		return nil
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to load comment", err))
		return nil
	}
	return c
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	c := h.loadComment(w, r)
	if c == nil {
		return
	}
	if err := policy.Allow(u, policy.CommentEdit, policy.Owned(c.AuthorID)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	body, _ := httpx.DecodeBody(r)
	update := store.CommentUpdate{UpdatedAt: h.now()}

	if text, ok := validate.OptionalString(body.Get("body"), maxComment); ok {
		update.Body = &text
	}
	if isAnswer, ok := body.Get("is_answer").(bool); ok {
		if err := policy.Allow(u, policy.CommentSetAnswer, policy.Owned(c.AuthorID)); err != nil {
			httpx.Error(w, r, err)
			return
		}
		update.IsAnswer = &isAnswer
	}
	if update.Body == nil && update.IsAnswer == nil {
		httpx.Error(w, r, apperr.Invalid("Nothing to update"))
		return
	}

	updated, err := h.store.UpdateComment(r.Context(), c.ID, update)
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, errCommentNotFound)
		return
	}
	if err != nil {
		httpx.Error(w, r, apperr.Internal("Failed to update comment", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	c := h.loadComment(w, r)
	if c == nil {
		return
	}
	if err := policy.Allow(u, policy.CommentDelete, policy.Owned(c.AuthorID)); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := h.store.DeleteComment(r.Context(), c.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, r, apperr.Internal("Failed to delete comment", err))
		return
	}
	httpx.OK(w)
}
