// Package requestcontext carries request-scoped values from the HTTP
// middleware down to services without importing net/http.
//
// Middleware sets values; services, publishers and workers read them. Tests
// that skip the middleware chain inject values with the With* helpers:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"

	id "kyc/pkg/domain"
)

type key int

const (
	keyUserID key = iota
	keyAdmin
	keyDeviceID
	keyDeviceFingerprint
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// UserID is the authenticated user, or the nil id for anonymous and admin
// requests.
func UserID(ctx context.Context) id.UserID { return value[id.UserID](ctx, keyUserID) }

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

// IsAdmin reports whether the request presented the admin token.
func IsAdmin(ctx context.Context) bool { return value[bool](ctx, keyAdmin) }

func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyAdmin, true)
}

// DeviceID is the raw device cookie value.
func DeviceID(ctx context.Context) string { return value[string](ctx, keyDeviceID) }

func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, keyDeviceID, deviceID)
}

// DeviceFingerprint is the hashed client fingerprint attached to audit rows.
func DeviceFingerprint(ctx context.Context) string {
	return value[string](ctx, keyDeviceFingerprint)
}

func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, keyDeviceFingerprint, fingerprint)
}

func ClientIP(ctx context.Context) string  { return value[string](ctx, keyClientIP) }
func UserAgent(ctx context.Context) string { return value[string](ctx, keyUserAgent) }

// WithClientMetadata stores the resolved client IP and User-Agent together.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string { return value[string](ctx, keyRequestID) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the time the request arrived. Outside a request (relay, CLI) it is
// the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins Now for the rest of the call chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
