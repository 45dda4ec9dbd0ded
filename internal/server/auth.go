package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/robin-backend/internal/auth"
)

// AuthMiddleware resolves the caller from the bearer token. Requests without
// a token pass through anonymously; handlers that need an identity check
// auth.CallerFrom. A token that is present but invalid is rejected with 401.
// A nil authenticator disables the middleware.
func AuthMiddleware(authenticator *auth.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if authenticator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r)
			if errors.Is(err, auth.ErrMissingToken) {
				next.ServeHTTP(w, r)
				return
			}
			var caller *auth.Caller
			if err == nil {
				caller, err = authenticator.Authenticate(token)
			}
			if err != nil {
				logger.Debug("rejected bearer token", slog.String("error", err.Error()))
				AddError(r.Context(), err)
				WriteError(w, http.StatusUnauthorized, "Invalid bearer token")
				return
			}
			AddLogField(r.Context(), "user_id", caller.UserID)
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}
