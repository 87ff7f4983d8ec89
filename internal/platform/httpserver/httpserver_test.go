package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	srv := New(":8080", http.NotFoundHandler(), 45*time.Second)
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 55*time.Second, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)

	assert.Equal(t, 70*time.Second, New(":0", nil, 0).WriteTimeout)
}
