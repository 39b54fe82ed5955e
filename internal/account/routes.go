package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, session func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(session)
	r.Post("/profile", h.UpdateProfile)
	return r
}
