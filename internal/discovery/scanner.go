package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/platform"
	"go.uber.org/zap"
)

// skipExecutables match the tool prefix but are not processors.
var skipExecutables = map[string]bool{
	"ocrd-cis-data": true,
	"ocrd-import":   true,
	"ocrd-make":     true,
}

// Found is an executable discovered on the search path together with the
// description it gave of itself.
type Found struct {
	Executable  string
	Path        string
	Description *manifest.ToolDescription
}

// Scanner finds processors on the executable search path.
type Scanner struct {
	// PathList is the search path to scan. Empty means $PATH.
	PathList     string
	Introspector ToolIntrospector
	log          *zap.Logger
}

// NewScanner returns a scanner that describes what it finds with intro.
func NewScanner(intro ToolIntrospector, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{Introspector: intro, log: log.Named("discovery")}
}

// Scan returns every executable on the search path whose name matches the
// glob pattern, in search path order. The first match of a name wins, the
// way a shell resolves it. Names without the tool prefix are warned about
// but kept. Executables that fail to describe themselves are logged and
// skipped.
func (s *Scanner) Scan(ctx context.Context, pattern string) ([]Found, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	pathList := s.PathList
	if pathList == "" {
		pathList = os.Getenv("PATH")
	}

	seen := make(map[string]bool)
	var found []Found
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return found, err
		}
		s.log.Debug("searching for executables", zap.String("dir", dir))

		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		sort.Strings(matches)
		for _, path := range matches {
			name := platform.ToolName(path)
			if seen[name] {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !platform.IsExecutable(info) {
				continue
			}
			if !strings.HasPrefix(name, branding.ToolPrefix()) {
				s.log.Warn("processor executable has no tool prefix",
					zap.String("path", path), zap.String("prefix", branding.ToolPrefix()))
			}
			if skipExecutables[name] {
				s.log.Debug("not a processor, skipping", zap.String("path", path))
				continue
			}
			seen[name] = true

			s.log.Debug("inspecting executable for resources", zap.String("path", path))
			td, err := s.Introspector.Describe(ctx, path)
			if err != nil {
				var de *DiscoveryError
				if !errors.As(err, &de) {
					de = &DiscoveryError{Executable: name, Op: "describe", Err: err}
				}
				s.log.Warn("skipping executable", zap.String("executable", name), zap.Error(de))
				continue
			}
			found = append(found, Found{Executable: name, Path: path, Description: td})
		}
	}
	return found, nil
}
