package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultlinker/internal/linkservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *linkservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Knowledge lookups.
	r.Get("/providers", h.Providers)
	r.Get("/lookup", h.Lookup)
	r.Delete("/cache", h.ClearCache)

	// Link suggestion and insertion.
	r.Post("/suggest", h.Suggest)
	r.Post("/link", h.Link)
	r.Post("/insert", h.Insert)

	// Batch runs.
	r.Route("/batch", func(r chi.Router) {
		r.Post("/suggest", h.BatchSuggest)
		r.Post("/apply", h.BatchApply)
	})

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
