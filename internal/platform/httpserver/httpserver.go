// Package httpserver builds the *http.Server the API listens on.
package httpserver

import (
	"net/http"
	"time"
)

// writeSlack is added on top of the request timeout so a handler that hits
// its deadline can still write the timeout response.
const writeSlack = 10 * time.Second

// New returns a server whose write timeout covers requestTimeout. Uploads
// run extraction synchronously, so requestTimeout is usually the longest
// extractor call plus scoring.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       120 * time.Second,
	}
}
