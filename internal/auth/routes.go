package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/memoboard/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(h.resolver, h.cookies.Name))
		r.Get("/me", h.Me)
		r.Post("/change-password", h.ChangePassword)
	})

	return r
}
