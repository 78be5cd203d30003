package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/StoneRaptor5870/image-processor/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/catalogs", h.UploadCatalog)
		r.Get("/catalogs/{requestID}", h.RequestStatus)
		r.Post("/webhook", h.Webhook)
	})

	return r
}
