package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-auth-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

type gateChecker interface {
	Check(ctx context.Context, principalEmail, targetUsername string) error
}

// RequireManage allows the request only if the principal may modify the user
// named by the given URL parameter. It must run after Auth.
func RequireManage(gate gateChecker, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			err := gate.Check(r.Context(), p.Email, chi.URLParam(r, param))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, domain.ErrUnauthorized):
				writeJSONError(w, http.StatusUnauthorized, "account no longer exists")
			case errors.Is(err, domain.ErrNotFound):
				writeJSONError(w, http.StatusNotFound, "user not found")
			case errors.Is(err, domain.ErrForbidden):
				writeJSONError(w, http.StatusForbidden, "not allowed to modify this user")
			default:
				slog.Error("authorization check failed", "path", r.URL.Path, "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}
		})
	}
}
