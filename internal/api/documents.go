package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jaif/hal/internal/knowledge"
	"github.com/jaif/hal/internal/log"
)

// documentsHandler serves the vector store routes: adding documents
// and similarity search.
type documentsHandler struct {
	store  *knowledge.Store
	logger log.Logger
}

type addDocumentRequest struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *documentsHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	doc := knowledge.Document{
		ID:         req.ID,
		Collection: req.Collection,
		Content:    req.Content,
		Metadata:   req.Metadata,
	}
	if err := h.store.Add(r.Context(), doc); err != nil {
		if errors.Is(err, knowledge.ErrEmptyContent) {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "content is required")
			return
		}
		h.logger.Error("failed to add document", "id", req.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to add document")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]string{"id": req.ID})
}

func (h *documentsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, knowledge.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "document not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete document", "id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// search handles GET /api/v1/search?q=...&k=...&collection=...
func (h *documentsHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "q is required")
		return
	}

	opts := []knowledge.SearchOption{}
	if collection := r.URL.Query().Get("collection"); collection != "" {
		opts = append(opts, knowledge.WithCollection(collection))
	}
	if k, err := strconv.Atoi(r.URL.Query().Get("k")); err == nil && k > 0 && k <= 50 {
		opts = append(opts, knowledge.WithTopK(k))
	}

	results, err := h.store.Search(r.Context(), query, opts...)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			ID:      res.Document.ID,
			Content: res.Document.Content,
			Score:   res.Score,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"documents": hits})
}
