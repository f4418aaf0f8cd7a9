package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Search responses can carry a full result page
// of extracted documents, so the write timeout is generous relative to the
// header read timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
