package api

import (
	"github.com/go-chi/chi/v5"
)

// Routes builds the resource router. Middleware is attached by the caller.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/ping", h.Ping)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Get("/", h.ListAccounts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetAccount)
			r.Put("/", h.UpdateAccount)
			r.Delete("/", h.DeleteAccount)
			r.Post("/upload-image", h.UploadAccountImage)
		})
	})

	r.Route("/audios", func(r chi.Router) {
		r.Post("/", h.CreateAudio)
		r.Get("/", h.ListAudios)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", h.GetAudio)
			r.Put("/", h.UpdateAudio)
			r.Delete("/", h.DeleteAudio)
		})
	})

	return r
}
