// Package device derives a coarse device fingerprint from the User-Agent so
// audit events can tell apart the clients a user submits receipts from.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"kyc/pkg/requestcontext"
)

// CookieName carries a client-chosen device identifier, when present.
const CookieName = "kyc_device_id"

// Info is the parsed view of a User-Agent.
type Info struct {
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

// Parse extracts browser, OS and form factor from a User-Agent string.
func Parse(userAgent string) Info {
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	return Info{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}

// Fingerprint hashes the stable parts of the User-Agent. Minor browser
// updates keep the same fingerprint.
func Fingerprint(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	info := Parse(userAgent)
	major, _, _ := strings.Cut(info.BrowserVersion, ".")
	form := "desktop"
	if info.Mobile {
		form = "mobile"
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{info.Browser, major, info.OS, form}, "|")))
	return hex.EncodeToString(sum[:16])
}

// Middleware stores the device id cookie and fingerprint in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if c, err := r.Cookie(CookieName); err == nil && c.Value != "" && len(c.Value) <= 128 {
			ctx = requestcontext.WithDeviceID(ctx, c.Value)
		}
		if fp := Fingerprint(r.Header.Get("User-Agent")); fp != "" {
			ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
