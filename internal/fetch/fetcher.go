package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// DefaultChunkSize is the read size for streamed transfers. Progress is
// reported once per chunk.
const DefaultChunkSize = 4096

// ErrUnsupportedArchive is returned when an archive's sniffed media type has
// no extractor.
var ErrUnsupportedArchive = errors.New("unsupported archive type")

// TransferError reports a failed download or copy. The destination has been
// removed by the time it is returned.
type TransferError struct {
	URL  string
	Dest string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transferring %s to %s: %v", e.URL, e.Dest, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Request describes one resource to acquire.
type Request struct {
	Tool string
	URL  string
	// BaseDir is the resource root, e.g. the data location directory.
	BaseDir   string
	Overwrite bool
	// NoSubdir places the resource directly in BaseDir instead of
	// BaseDir/Tool.
	NoSubdir bool
	// Name defaults to the last segment of the URL path, percent-decoded.
	Name string
	// Type is one of file, directory or archive. Empty means file.
	Type string
	// PathInArchive selects what to take out of an archive. Empty means
	// the whole archive root.
	PathInArchive string
	// Progress, when set, is called with the byte count of every chunk
	// transferred.
	Progress func(n int64)
}

// Destination returns where the request's resource ends up.
func (r Request) Destination() string {
	dir := r.BaseDir
	if !r.NoSubdir {
		dir = filepath.Join(r.BaseDir, r.Tool)
	}
	return filepath.Join(dir, r.resolvedName())
}

func (r Request) resolvedName() string {
	if r.Name != "" {
		return r.Name
	}
	if u, err := url.Parse(r.URL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return filepath.Base(r.URL)
}

func (r Request) resourceType() string {
	if r.Type == "" {
		return manifest.TypeFile
	}
	return r.Type
}

// Fetcher acquires resources over HTTP(S) or from the local filesystem.
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	chunkSize  int
	tempDir    string
	log        *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(f *Fetcher) {
		f.log = log
	}
}

// WithTimeout bounds each HTTP exchange. Zero means no timeout. Ignored
// when WithHTTPClient is given.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithChunkSize sets the transfer chunk size.
func WithChunkSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithTempDir sets where archive scratch directories are created. Defaults
// to the system temp dir.
func WithTempDir(dir string) Option {
	return func(f *Fetcher) {
		f.tempDir = dir
	}
}

// New creates a Fetcher with the given options.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: f.timeout}
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	f.log = f.log.Named("fetch")
	return f
}

// Download acquires the resource described by req and returns its path.
//
// An existing destination is left alone unless req.Overwrite is set, in
// which case it is removed first. Plain files and directories are streamed
// from http(s) URLs or copied from local paths. Archives are fetched into a
// private scratch directory, unpacked there, and req.PathInArchive is
// copied out. Any failure removes the destination and returns a
// *TransferError.
func (f *Fetcher) Download(ctx context.Context, req Request) (string, error) {
	dest := req.Destination()

	if info, err := os.Lstat(dest); err == nil {
		kind := "file"
		if info.IsDir() {
			kind = "directory"
		}
		if !req.Overwrite {
			f.log.Warn("destination already exists and overwrite is not set, skipping",
				zap.String("kind", kind), zap.String("path", dest))
			return dest, nil
		}
		f.log.Info("removing existing destination", zap.String("kind", kind), zap.String("path", dest))
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("removing %s: %w", dest, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), location.DirPermNormal); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	var err error
	switch req.resourceType() {
	case manifest.TypeFile, manifest.TypeDirectory:
		err = f.transfer(ctx, req.URL, dest, req.Progress)
	case manifest.TypeArchive:
		err = f.fromArchive(ctx, req, dest)
	default:
		return "", fmt.Errorf("unknown resource type %q", req.Type)
	}
	if err != nil {
		f.rollback(dest)
		return "", &TransferError{URL: req.URL, Dest: dest, Err: err}
	}
	return dest, nil
}

// transfer fetches src into dest, over HTTP when src is an http(s) URL and
// by local copy otherwise.
func (f *Fetcher) transfer(ctx context.Context, src, dest string, progress func(int64)) error {
	if isRemote(src) {
		return f.downloadHTTP(ctx, src, dest, progress)
	}
	return f.copyLocal(ctx, localPath(src), dest, progress)
}

func (f *Fetcher) rollback(dest string) {
	if err := os.RemoveAll(dest); err != nil {
		f.log.Warn("could not remove partial destination", zap.String("path", dest), zap.Error(err))
	}
}

func isRemote(raw string) bool {
	return strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}

// localPath strips a file:// scheme, leaving plain paths untouched.
func localPath(raw string) string {
	if strings.HasPrefix(raw, "file://") {
		if u, err := url.Parse(raw); err == nil {
			return filepath.FromSlash(u.Path)
		}
	}
	return raw
}
