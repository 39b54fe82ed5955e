package memos

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts under /api/memos. session must put the caller's
// identity on the request context.
func SetupRoutes(h *Handler, session func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	// All memo routes require authentication
	r.Group(func(r chi.Router) {
		r.Use(session)

		r.Get("/", h.ListMemos)
		r.Post("/", h.CreateMemo)
		r.Get("/counts", h.Counts)
		r.Get("/{id}", h.GetMemo)
		r.Put("/{id}", h.UpdateMemo)
		r.Delete("/{id}", h.DeleteMemo)
		r.Post("/{id}/comments", h.CreateComment)
	})

	return r
}

// SetupCommentRoutes mounts under /api/comments.
func SetupCommentRoutes(h *Handler, session func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Put("/{id}", h.UpdateComment)
		r.Delete("/{id}", h.DeleteComment)
	})

	return r
}
