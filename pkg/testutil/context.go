package testutil

import (
	"net/http"
	"time"

	id "kyc/pkg/domain"
	"kyc/pkg/requestcontext"
)

// WithUserID authenticates req as userID, as the JWT middleware would. An
// unparseable id leaves the request anonymous so handlers can be tested
// against the unauthorized path.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithAdmin marks req as having passed the admin token check.
func WithAdmin(req *http.Request) *http.Request {
	return req.WithContext(requestcontext.WithAdmin(req.Context()))
}

// WithRequestTime pins the request clock so scores and timestamps are stable.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
