package helpers

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in APIError.Code.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeCategoryFull     = "category_full"
	ErrCodeStaleInteraction = "stale_interaction"
	ErrCodeConflict         = "conflict"
	ErrCodeNotReady         = "not_ready"
	ErrCodeInternalError    = "internal_error"
)

// APIError describes why a request failed. Message is safe to show to the
// member or operator who triggered it.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse wraps every body the API returns. Exactly one of Data and Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

// WriteJSONSuccess writes data inside the envelope.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeEnvelope(w, statusCode, APIResponse{Data: data})
}

// WriteJSONError writes an error envelope.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	writeEnvelope(w, statusCode, APIResponse{Error: &APIError{Code: code, Message: message}})
}

// Board counts change with every click, so nothing may be cached.
func writeEnvelope(w http.ResponseWriter, statusCode int, body APIResponse) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
