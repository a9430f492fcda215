package web

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/justestif/go-spotify-listening-log/internal/logging"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondJSON writes v as a JSON body with status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

// respondError writes an error body. Server errors are logged.
func respondError(w http.ResponseWriter, status int, kind, message string) {
	if status >= http.StatusInternalServerError {
		logging.Error().Int("status", status).Str("kind", kind).Str("error", message).Msg("request failed")
	}
	respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}
