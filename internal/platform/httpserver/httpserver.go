package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server shared by the operator console and gateway
// devices. Gateway hardware posts small JSON bodies over village uplinks
// that can stall mid-request, so the read and write deadlines are generous
// while still bounding a wedged connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
