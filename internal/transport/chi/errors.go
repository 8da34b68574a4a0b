package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeSessionNotFound = "session_not_found"
	CodeProviderError   = "provider_error"
	CodeIndexAlignment  = "index_alignment"
	CodeInternalError   = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
// Answer carries the degraded message when a question could not be answered.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Answer  string `json:"answer,omitempty"`
}

type sentinelMapping struct {
	err    error
	status int
	code   string
}

// errorTable maps domain sentinels to HTTP statuses. The first match wins.
var errorTable = []sentinelMapping{
	{domain.ErrEmptyQuery, http.StatusBadRequest, CodeBadRequest},
	{domain.ErrInvalidSessionID, http.StatusBadRequest, CodeBadRequest},
	{domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError},
	{domain.ErrCompletionProviderError, http.StatusBadGateway, CodeProviderError},
	{domain.ErrIndexAlignment, http.StatusInternalServerError, CodeIndexAlignment},
	{domain.ErrVectorDimMismatch, http.StatusInternalServerError, CodeIndexAlignment},
}

// classify returns the status, code and a client-safe message for err.
func classify(err error) (int, string, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternalError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
