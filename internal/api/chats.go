package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/session"
)

// chatsHandler serves the chat save/load CRUD routes.
type chatsHandler struct {
	store     *session.Store
	generator model.Generator
	logger    log.Logger
}

func (h *chatsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	chats, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to list chats")
		return
	}
	if chats == nil {
		chats = []session.Chat{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"chats": chats})
}

func (h *chatsHandler) create(w http.ResponseWriter, r *http.Request) {
	chat, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create chat", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to create chat")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, chat)
}

func (h *chatsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	chat, err := h.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "chat not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get chat", "chat_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to get chat")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, chat)
}

func (h *chatsHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	messages, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list messages", "chat_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to list messages")
		return
	}
	if messages == nil {
		messages = []session.Message{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"messages": messages})
}

func (h *chatsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "chat not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete chat", "chat_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to delete chat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// summarize regenerates the chat's save object from its history.
func (h *chatsHandler) summarize(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", "chat_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	if len(messages) == 0 {
		writeError(w, h.logger, http.StatusConflict, "empty_chat", "chat has no messages to summarize")
		return
	}

	summary, err := chains.Summarize(r.Context(), h.generator, messages)
	if err != nil {
		status, code := mapModelError(err)
		writeError(w, h.logger, status, code, err.Error())
		return
	}

	if err := h.store.UpdateSummary(r.Context(), id, summary); err != nil {
		h.logger.Error("failed to store summary", "chat_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to store summary")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summary)
}

// pathID parses the {id} path value as a UUID.
func pathID(w http.ResponseWriter, r *http.Request, logger log.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, logger, http.StatusBadRequest, "invalid_id", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// paging reads limit and offset query parameters with safe defaults.
func paging(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
