package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/fetch"
	"github.com/ocrd-go/resmgr/internal/manager"
	"github.com/ocrd-go/resmgr/internal/registry"
	"go.uber.org/zap"
)

const homeTimeLayout = "2006-01-02 15:04"

// HomeResponse is returned by GET /.
type HomeResponse struct {
	Message string `json:"message"`
	Time    string `json:"time"`
}

// ResultResponse wraps every listing and download answer.
type ResultResponse[T any] struct {
	Result T `json:"result"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write JSON response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	id, _ := RequestIDFromContext(r.Context())
	s.log.Warn("request failed", zap.String("request_id", id), zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: id})
}

// boolParam parses a boolean query parameter, falling back to def when it
// is absent or unparsable.
func boolParam(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// handleHome handles GET /.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HomeResponse{
		Message: "The home page of the " + branding.DisplayName() + " Server",
		Time:    s.now().Format(homeTimeLayout),
	})
}

// handleListAvailable handles GET /list_available.
func (s *Server) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := registry.ListOptions{
		Tool:    q.Get("executable"),
		Dynamic: boolParam(r, "dynamic", true),
		Name:    q.Get("name"),
		URL:     q.Get("url"),
	}

	s.mu.Lock()
	result, err := s.mgr.Store().ListAvailable(r.Context(), opts)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultResponse[[]registry.ToolResources]{Result: result})
}

// handleListInstalled handles GET /list_installed.
func (s *Server) handleListInstalled(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	result, err := s.mgr.Store().ListInstalled(r.Context(), r.URL.Query().Get("executable"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResultResponse[[]registry.ToolResources]{Result: result})
}

// handleDownload handles GET and POST /download. The resource is named by
// "name" (a registered name, "*", or a URL) or by "url".
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := manager.DownloadOptions{
		Tool:          q.Get("executable"),
		Name:          q.Get("name"),
		Location:      q.Get("location"),
		Overwrite:     boolParam(r, "overwrite", false),
		NoSubdir:      boolParam(r, "no_subdir", false),
		Dynamic:       boolParam(r, "dynamic", false),
		Type:          q.Get("type"),
		PathInArchive: q.Get("path_in_archive"),
		Jobs:          intParam(r, "jobs", 1),
		Progress: func(_, _ string, n int64) {
			s.metrics.transferred.Add(float64(n))
		},
	}
	if u := q.Get("url"); u != "" {
		opts.Name = u
	}
	if opts.Tool == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("executable is required"))
		return
	}

	s.mu.Lock()
	result, err := s.mgr.Download(r.Context(), opts)
	s.mu.Unlock()
	s.metrics.downloads.WithLabelValues(outcome(err)).Inc()

	var te *fetch.TransferError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, ResultResponse[[]manager.Downloaded]{Result: result})
	case errors.Is(err, manager.ErrNoSuchResource):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.As(err, &te):
		s.writeError(w, r, http.StatusBadGateway, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}
