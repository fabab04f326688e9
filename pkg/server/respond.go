package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/saint0x/gitfix/pkg/fix"
	"github.com/saint0x/gitfix/pkg/github"
	"github.com/saint0x/gitfix/pkg/ledger"
	"github.com/saint0x/gitfix/pkg/log"
	"github.com/saint0x/gitfix/pkg/prlinks"
	"github.com/saint0x/gitfix/pkg/publish"
)

// maxBodyBytes bounds request bodies; file contents travel inline.
const maxBodyBytes = 8 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// isInvalid reports whether err is a caller mistake
func isInvalid(err error) bool {
	return errors.Is(err, fix.ErrInvalidRequest) ||
		errors.Is(err, fix.ErrUnknownFile) ||
		errors.Is(err, publish.ErrInvalidRequest) ||
		errors.Is(err, ledger.ErrInvalidThread) ||
		errors.Is(err, prlinks.ErrInvalidThread) ||
		errors.Is(err, prlinks.ErrInvalidTurn)
}

// statusFor maps an error to a status code, using fallback for anything
// that is neither a caller mistake nor a missing upstream object.
func statusFor(err error, fallback int) int {
	switch {
	case isInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, github.ErrNotFound):
		return http.StatusNotFound
	default:
		return fallback
	}
}

// fail logs err and writes {error: summary, message: err}
func (s *Server) fail(w http.ResponseWriter, r *http.Request, summary string, err error, fallback int) {
	status := statusFor(err, fallback)
	logger := log.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("%s: %v", summary, err)
	} else {
		logger.Warning("%s: %v", summary, err)
	}
	writeJSON(w, status, errorResponse{Error: summary, Message: err.Error()})
}

// parseInstallationID validates an installation id from a path, query or
// header value.
func parseInstallationID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
