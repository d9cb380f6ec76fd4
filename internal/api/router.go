package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/munin/internal/membank"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(bank *membank.Bank, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(bank)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Blocks CRUD.
	r.Get("/blocks", h.ListBlocks)
	r.Post("/blocks", h.CreateBlock)
	r.Get("/blocks/{id}", h.GetBlock)
	r.Put("/blocks/{id}", h.UpdateBlock)
	r.Delete("/blocks/{id}", h.DeleteBlock)

	// Links and audit trail.
	r.Get("/blocks/{id}/links", h.ForwardLinks)
	r.Get("/blocks/{id}/backlinks", h.Backlinks)
	r.Get("/blocks/{id}/proofs", h.Proofs)

	// Queries.
	r.Post("/query/semantic", h.QuerySemantic)
	r.Get("/query/tags", h.QueryByTags)

	// Schemas.
	r.Get("/schemas", h.ListSchemas)

	// Index repair.
	r.Post("/reindex", h.ReindexAll)
	r.Post("/reindex/{id}", h.ReindexBlock)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
