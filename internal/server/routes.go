package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires up the API endpoints on the given ServeMux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.Handle("GET /{$}", s.instrument("home", s.handleHome))
	mux.Handle("GET /list_available", s.instrument("list_available", s.handleListAvailable))
	mux.Handle("GET /list_installed", s.instrument("list_installed", s.handleListInstalled))
	mux.Handle("GET /download", s.instrument("download", s.handleDownload))
	mux.Handle("POST /download", s.instrument("download", s.handleDownload))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}
