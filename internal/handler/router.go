package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/sipsaver-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса sipsaver.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)
		r.Post("/user/logout", h.Logout)

		r.Get("/menu", h.Menu)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Optional)

			r.Post("/estimate", h.Estimate)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/estimates", h.SaveEstimate)
			r.Get("/estimates", h.ListEstimates)

			r.Get("/estimates/{id}", h.GetEstimate)
			r.Post("/estimates/{id}/rename", h.RenameEstimate)
			r.Post("/estimates/{id}/payload", h.UpdateEstimatePayload)
			r.Delete("/estimates/{id}", h.DeleteEstimate)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "Not found.")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
