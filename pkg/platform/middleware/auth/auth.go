// Package auth authenticates end users by bearer token.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/platform/httputil"
	request "kyc/pkg/platform/middleware/request"
	"kyc/pkg/requestcontext"
)

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	AuthenticateToken(token string) (id.UserID, error)
}

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header")
	errBadToken     = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
)

// RequireAuth rejects requests without a valid bearer token and stores the
// user id for handlers and services downstream.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				logger.WarnContext(ctx, "missing bearer token", "request_id", request.GetRequestID(ctx))
				httputil.WriteError(w, errMissingToken)
				return
			}

			userID, err := verifier.AuthenticateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "rejected bearer token",
					"reason", dErrors.MessageOf(err),
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, errBadToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}
