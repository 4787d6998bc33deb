package queueapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

// Response is the envelope of every admin API reply.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// writeError maps queue errors to status codes. Unknown errors become 500
// with a generic message.
func writeError(w http.ResponseWriter, err error) int {
	status, code, msg := http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError)

	var reqErr badRequestError
	switch {
	case errors.As(err, &reqErr):
		status, code, msg = http.StatusBadRequest, "bad_request", reqErr.Error()
	case errors.Is(err, queue.ErrInvalidFilter):
		status, code, msg = http.StatusBadRequest, "invalid_filter", err.Error()
	case errors.Is(err, queue.ErrJobNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "job not found"
	case errors.Is(err, queue.ErrStorageClosed):
		status, code, msg = http.StatusServiceUnavailable, "unavailable", "queue storage is closed"
	}

	writeJSON(w, status, Response{Error: &ErrorDetail{Code: code, Message: msg}})
	return status
}

type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }
