package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/session"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // partial response text
	EventDone  = "done"  // stream completed successfully
	EventError = "error" // error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Response string `json:"response"`
	Chain    string `json:"chain"`
	ChatID   string `json:"chatId,omitempty"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// chatMessage is one turn in the request's message list.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest selects a chain and carries the conversation so far; the
// last message is the one being answered.
type chatRequest struct {
	Chain    string        `json:"chain"`
	ChatID   string        `json:"chatId"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Response string `json:"response"`
	Chain    string `json:"chain"`
	ChatID   string `json:"chatId,omitempty"`
}

// chatHandler serves the synchronous and streaming chat endpoints.
type chatHandler struct {
	registry  *chains.Registry
	generator model.Generator
	sessions  *session.Store // optional: nil disables persistence
	logger    log.Logger
}

const maxChatBody = 1 << 20

// parse decodes and validates a chat request. The chain defaults to
// the plain chat route.
func (h *chatHandler) parse(w http.ResponseWriter, r *http.Request) (chatRequest, string, string, error) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, "", "", fmt.Errorf("invalid request body: %w", err)
	}
	if len(req.Messages) == 0 {
		return req, "", "", errors.New("messages is required")
	}
	if req.Chain == "" {
		req.Chain = chains.RouteChat
	}

	current := req.Messages[len(req.Messages)-1].Content
	if current == "" {
		return req, "", "", errors.New("last message has no content")
	}

	prior := make([]session.Message, 0, len(req.Messages)-1)
	for _, m := range req.Messages[:len(req.Messages)-1] {
		prior = append(prior, session.Message{Role: m.Role, Content: m.Content})
	}
	return req, current, session.FormatHistory(prior), nil
}

// send handles POST /api/v1/chat: full response as JSON.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	req, current, history, err := h.parse(w, r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	chain, err := h.registry.Get(req.Chain)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "unknown_chain", err.Error())
		return
	}

	response, err := chain.Run(r.Context(), chains.Input(current, history))
	if err != nil {
		status, code := mapModelError(err)
		writeError(w, h.logger, status, code, err.Error())
		return
	}

	h.persist(r.Context(), req.ChatID, current, response)
	writeJSON(w, h.logger, http.StatusOK, chatResponse{
		Response: response,
		Chain:    req.Chain,
		ChatID:   req.ChatID,
	})
}

// stream handles POST /api/v1/chat/stream: SSE chunk delivery.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	req, current, history, err := h.parse(w, r)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	chain, err := h.registry.Get(req.Chain)
	if err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{Code: "UNKNOWN_CHAIN", Message: err.Error()})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "chain", req.Chain, "request_id", requestIDFromContext(ctx))

	stream, err := chain.Stream(ctx, chains.Input(current, history))
	if err != nil {
		h.writeStreamError(w, flusher, err)
		return
	}
	defer stream.Close()

	var full []byte
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "chain", req.Chain)
			return
		default:
		}

		text, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			h.writeStreamError(w, flusher, err)
			return
		}
		full = append(full, text...)
		if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text}); err != nil {
			// Write failure usually means the connection closed.
			h.logger.Debug("failed to write chunk", "error", err)
			return
		}
	}

	response := string(full)
	h.persist(ctx, req.ChatID, current, response)

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response: response,
		Chain:    req.Chain,
		ChatID:   req.ChatID,
	})
	h.logger.Debug("SSE stream completed", "chain", req.Chain, "bytes", len(response))
}

// persist appends the exchange to the chat and refreshes its summary
// metadata. Persistence failures are logged, never surfaced: the
// response was already produced.
func (h *chatHandler) persist(ctx context.Context, chatID, userMessage, response string) {
	if h.sessions == nil || chatID == "" {
		return
	}

	id, err := uuid.Parse(chatID)
	if err != nil {
		h.logger.Warn("invalid chat ID, skipping persistence", "chat_id", chatID)
		return
	}

	err = h.sessions.AppendMessages(ctx, id,
		session.Message{Role: session.RoleUser, Content: userMessage},
		session.Message{Role: session.RoleAssistant, Content: response},
	)
	if err != nil {
		h.logger.Error("failed to persist exchange", "chat_id", id, "error", err)
		return
	}

	messages, err := h.sessions.Messages(ctx, id)
	if err != nil {
		h.logger.Error("failed to load history for summary", "chat_id", id, "error", err)
		return
	}
	summary, err := chains.Summarize(ctx, h.generator, messages)
	if err != nil {
		h.logger.Warn("summary generation failed", "chat_id", id, "error", err)
		return
	}
	if err := h.sessions.UpdateSummary(ctx, id, summary); err != nil {
		h.logger.Error("failed to store summary", "chat_id", id, "error", err)
	}
}

// writeStreamError maps chain errors to SSE error events.
func (h *chatHandler) writeStreamError(w io.Writer, f http.Flusher, err error) {
	_, code := mapModelError(err)
	_ = writeEvent(w, f, EventError, ErrorPayload{Code: code, Message: err.Error()})
}

// mapModelError translates adapter sentinels to an HTTP status plus a
// stable error code.
func mapModelError(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, model.ErrAuthFailed):
		return http.StatusBadGateway, "AUTH_FAILED"
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "MODEL_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "STREAM_ERROR"
	}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
