package models

import (
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassRead covers score lookups, history and receipt listing.
	ClassRead EndpointClass = "read"
	// ClassWrite covers uploads, reprocessing, deletes and recalculation.
	ClassWrite EndpointClass = "write"
	// ClassAdmin covers the operator surface, keyed by client IP.
	ClassAdmin EndpointClass = "admin"
)

// IsValid checks if the endpoint class is one of the supported values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassRead, ClassWrite, ClassAdmin:
		return true
	}
	return false
}

// Limit is the number of requests allowed per window. Zero disables the limit.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Unlimited reports whether the limit lets every request through.
func (l Limit) Unlimited() bool {
	return l.Requests <= 0 || l.Window <= 0
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// SanitizeKeySegment escapes the key delimiter so a crafted identifier
// cannot collide with another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
