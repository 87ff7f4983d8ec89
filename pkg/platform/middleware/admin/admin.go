// Package admin guards operator routes with a shared secret.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "kyc/pkg/domain-errors"
	"kyc/pkg/platform/httputil"
	request "kyc/pkg/platform/middleware/request"
	"kyc/pkg/requestcontext"
)

// HeaderAdminToken carries the operator secret.
const HeaderAdminToken = "X-Admin-Token"

var errAdminToken = dErrors.New(dErrors.CodeUnauthorized, "admin token required")

// RequireAdminToken admits requests whose X-Admin-Token equals expected. An
// unconfigured token locks the admin surface entirely.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			got := []byte(r.Header.Get(HeaderAdminToken))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", request.GetRequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, errAdminToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdmin(ctx)))
		})
	}
}
