package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/jokes"
	"github.com/jaif/hal/internal/log"
)

// jokesHandler serves the joke dataset routes: listing and saving
// stored jokes, plus the topic fan-out generation workflow.
type jokesHandler struct {
	store     *jokes.Store
	generator *chains.JokeGenerator
	logger    log.Logger
}

func (h *jokesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	items, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list jokes", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to list jokes")
		return
	}
	if items == nil {
		items = []jokes.Joke{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"jokes": items})
}

type saveJokeRequest struct {
	Joke           string `json:"joke"`
	ChainOfThought string `json:"chain_of_thought"`
	Topic          string `json:"topic"`
}

func (h *jokesHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveJokeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Joke == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "joke is required")
		return
	}

	saved, err := h.store.Save(r.Context(), jokes.Joke{
		Joke:           req.Joke,
		ChainOfThought: req.ChainOfThought,
		Topic:          req.Topic,
	})
	if err != nil {
		h.logger.Error("failed to save joke", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to save joke")
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, saved)
}

func (h *jokesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, jokes.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "joke not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete joke", "joke_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to delete joke")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateJokesRequest struct {
	Topics int `json:"topics"`
}

type generateJokesResponse struct {
	Jokes    []jokes.Joke `json:"jokes"`
	Failures []string     `json:"failures,omitempty"`
}

// generate runs the topic fan-out workflow and stores the results.
// Per-topic failures are reported alongside the jokes that did come
// through.
func (h *jokesHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateJokesRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	generated, failures := h.generator.Generate(r.Context(), req.Topics)
	if len(generated) == 0 && len(failures) > 0 {
		status, code := mapModelError(failures[0])
		writeError(w, h.logger, status, code, failures[0].Error())
		return
	}

	toSave := make([]jokes.Joke, 0, len(generated))
	for _, g := range generated {
		toSave = append(toSave, jokes.Joke{
			Joke:           g.Joke,
			ChainOfThought: g.ChainOfThought,
			Topic:          g.Topic,
		})
	}
	saved, err := h.store.SaveAll(r.Context(), toSave)
	if err != nil {
		h.logger.Error("failed to save generated jokes", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal_error", "failed to save jokes")
		return
	}

	resp := generateJokesResponse{Jokes: saved}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, f.Error())
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
