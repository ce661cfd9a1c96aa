package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

func NewMux(check CheckFunc) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, check)
	return mux
}

// NewServer returns a server with conservative timeouts for a read-only API.
// Every request is logged through logger.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           RequestLogger(logger, handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
