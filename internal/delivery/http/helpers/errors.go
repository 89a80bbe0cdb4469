package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"signupboard/internal/domain"
)

// WriteDomainError maps a service error onto the API error envelope. Anything
// unrecognised is logged and reported as 500.
func WriteDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var inErr *domain.InputError
	switch {
	case errors.As(err, &inErr):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, inErr.Error())
	case errors.Is(err, domain.ErrInvalidFormat):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrCategoryFull):
		WriteJSONError(w, http.StatusConflict, ErrCodeCategoryFull, "This category is full!")
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "You do not have permission to sign up to this event.")
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, domain.ErrSessionConflict):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, "a setup session is already running in this guild")
	case errors.Is(err, domain.ErrTooManyEvents):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, "this guild has reached its event limit")
	case errors.Is(err, domain.ErrVersionConflict):
		WriteJSONError(w, http.StatusConflict, ErrCodeConflict, "state changed, retry")
	case errors.Is(err, domain.ErrNotReady):
		w.Header().Set("Retry-After", "1")
		WriteJSONError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "controls are still being restored")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteJSONError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "unauthorized")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
