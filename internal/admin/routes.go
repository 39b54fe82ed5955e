package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/memoboard/internal/middleware"
)

// SetupRoutes mounts under /api/admin. session resolves the caller; the admin
// check is applied here for every route.
func SetupRoutes(h *Handler, session func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(session)
	r.Use(middleware.AdminMiddleware)

	r.Get("/users", h.ListUsers)
	r.Delete("/users", h.DeleteUser)
	r.Post("/users/create", h.CreateUser)
	r.Post("/users/{id}/reset-password", h.ResetPassword)

	return r
}
