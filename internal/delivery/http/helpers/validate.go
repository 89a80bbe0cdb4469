package helpers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes bounds request bodies. The largest legitimate body is a wizard
// reply carrying a 2500-character description.
const maxBodyBytes = 64 << 10

// Validator is implemented by request bodies that check their own fields.
// An empty result means valid.
type Validator interface {
	Validate() []string
}

// DecodeAndValidate reads exactly one JSON object into dest, rejecting unknown
// fields, and runs dest's Validate when it has one. On failure it has already
// written a 400 and returns false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		msg := err.Error()
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		case errors.As(err, &tooLarge):
			msg = "request body is too large"
		}
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return false
	}
	if dec.More() {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, "request body must hold a single JSON object")
		return false
	}

	v, ok := dest.(Validator)
	if !ok {
		return true
	}
	if problems := v.Validate(); len(problems) > 0 {
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, strings.Join(problems, "; "))
		return false
	}
	return true
}
