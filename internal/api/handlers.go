package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/block"
	"github.com/halvard/munin/internal/membank"
)

// Handler holds API route handlers.
type Handler struct {
	bank *membank.Bank
}

// NewHandler creates a new Handler.
func NewHandler(bank *membank.Bank) *Handler {
	return &Handler{bank: bank}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, logMsg string, attrs ...slog.Attr) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("memory bank not ready"))
	case apperr.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		args := make([]any, 0, len(attrs)+1)
		for _, a := range attrs {
			args = append(args, a)
		}
		args = append(args, slog.String("error", err.Error()))
		slog.Error(logMsg, args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListBlocks handles GET /blocks with an optional ?type filter.
func (h *Handler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.bank.ListBlocks(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, err, "list blocks failed")
		return
	}
	if blocks == nil {
		blocks = []*block.Block{}
	}
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: blocks, Total: len(blocks)})
}

// CreateBlock handles POST /blocks.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.bank.CreateBlock(r.Context(), &req); err != nil {
		writeError(w, err, "create block failed", slog.String("id", req.ID))
		return
	}
	writeJSON(w, http.StatusCreated, &req)
}

// GetBlock handles GET /blocks/{id}.
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.bank.GetBlock(r.Context(), id)
	if err != nil {
		writeError(w, err, "get block failed", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// UpdateBlock handles PUT /blocks/{id}.
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var patch UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	b, err := h.bank.UpdateBlock(r.Context(), id, patch)
	if err != nil {
		writeError(w, err, "update block failed", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBlock handles DELETE /blocks/{id}.
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.bank.DeleteBlock(r.Context(), id); err != nil {
		writeError(w, err, "delete block failed", slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForwardLinks handles GET /blocks/{id}/links.
func (h *Handler) ForwardLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rel := block.Relation(r.URL.Query().Get("relation"))
	links, err := h.bank.ForwardLinks(r.Context(), id, rel)
	if err != nil {
		writeError(w, err, "forward links failed", slog.String("id", id))
		return
	}
	if links == nil {
		links = []block.Link{}
	}
	writeJSON(w, http.StatusOK, LinkListResponse{Links: links})
}

// Backlinks handles GET /blocks/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rel := block.Relation(r.URL.Query().Get("relation"))
	links, err := h.bank.Backlinks(r.Context(), id, rel)
	if err != nil {
		writeError(w, err, "backlinks failed", slog.String("id", id))
		return
	}
	if links == nil {
		links = []block.Link{}
	}
	writeJSON(w, http.StatusOK, LinkListResponse{Links: links})
}

// Proofs handles GET /blocks/{id}/proofs.
func (h *Handler) Proofs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	proofs, err := h.bank.Proofs(r.Context(), id)
	if err != nil {
		writeError(w, err, "proofs failed", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, ProofListResponse{Proofs: proofs})
}

// QuerySemantic handles POST /query/semantic.
func (h *Handler) QuerySemantic(w http.ResponseWriter, r *http.Request) {
	var req SemanticQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	blocks, err := h.bank.QuerySemantic(r.Context(), req.Text, req.TopK)
	if err != nil {
		writeError(w, err, "semantic query failed")
		return
	}
	if blocks == nil {
		blocks = []*block.Block{}
	}
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: blocks, Total: len(blocks)})
}

// QueryByTags handles GET /query/tags?tags=a,b&match=all|any.
func (h *Handler) QueryByTags(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("tags")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("tags is required"))
		return
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	matchAll := q.Get("match") == "all"
	blocks, err := h.bank.BlocksByTags(r.Context(), tags, matchAll)
	if err != nil {
		writeError(w, err, "tag query failed")
		return
	}
	if blocks == nil {
		blocks = []*block.Block{}
	}
	writeJSON(w, http.StatusOK, BlockListResponse{Blocks: blocks, Total: len(blocks)})
}

// ListSchemas handles GET /schemas.
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.bank.ListSchemas(r.Context())
	if err != nil {
		writeError(w, err, "list schemas failed")
		return
	}
	writeJSON(w, http.StatusOK, SchemaListResponse{Schemas: schemas})
}

// ReindexBlock handles POST /reindex/{id}.
func (h *Handler) ReindexBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.bank.Reindex(r.Context(), id); err != nil {
		writeError(w, err, "reindex failed", slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Reindexed: 1})
}

// ReindexAll handles POST /reindex.
func (h *Handler) ReindexAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.bank.ReindexAll(r.Context())
	if err != nil {
		writeError(w, err, "reindex all failed")
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Reindexed: n})
}
