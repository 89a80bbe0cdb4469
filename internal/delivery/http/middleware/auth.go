package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"signupboard/internal/delivery/http/helpers"
	"signupboard/internal/domain"
)

type principalKey struct{}

// SetPrincipal stores the authenticated gateway subject in ctx.
func SetPrincipal(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, principalKey{}, subject)
}

// PrincipalFromContext returns the subject stored by RequireAuth.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(principalKey{}).(string)
	return subject, ok
}

// RequireAuth admits only callers presenting a gateway bearer token that
// verifier accepts. The scheme name is matched case-insensitively.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	reject := func(w http.ResponseWriter, msg string) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="signupboard"`)
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, msg)
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			switch {
			case scheme == "":
				reject(w, "missing authorization header")
				return
			case !found || !strings.EqualFold(scheme, "Bearer"):
				reject(w, "invalid authorization format")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				reject(w, "missing token")
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "gateway token rejected", "path", r.URL.Path, "err", err)
				reject(w, "invalid or expired token")
				return
			}
			next(w, r.WithContext(SetPrincipal(r.Context(), subject)))
		}
	}
}
