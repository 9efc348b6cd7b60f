package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/murmur/internal/noteservice"
)

// RebuildHook is called after the report has been regenerated through the
// API, so the caller can notify SSE subscribers.
type RebuildHook func(res *noteservice.RebuildResult)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, onRebuild RebuildHook) chi.Router {
	h := NewHandler(svc, onRebuild)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/search", h.Search)

	r.Get("/topics", h.Topics)
	r.Post("/topics/rebuild", h.RebuildTopics)

	r.Get("/collections", h.Collections)
	r.Get("/notes/{collection}/*", h.GetNote)
	r.Get("/backlinks", h.Backlinks)

	r.Post("/import", h.Import)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
