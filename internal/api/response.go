package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jaif/hal/internal/log"
)

// writeJSON writes a JSON response with the given status code. The body
// is encoded into a buffer first so headers only go out after a
// successful encode and a proper 500 can still be returned on failure.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with a stable machine
// readable code and a human readable message.
func writeError(w http.ResponseWriter, logger log.Logger, status int, code, message string) {
	writeJSON(w, logger, status, errorBody{Error: code, Message: message})
}
