package location

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// ErrResourceNotFound is returned when no candidate path exists.
var ErrResourceNotFound = errors.New("resource not found")

// Permission constants for directories and files the resolver creates.
const (
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
)

// Installed is a resource found on disk: the root it was found under and
// its full path.
type Installed struct {
	Base string `json:"base"`
	Path string `json:"path"`
}

// Resolver answers where resources of a tool may live and what is there.
type Resolver struct {
	settings config.Settings
	log      *zap.Logger
}

// NewResolver returns a resolver over the given settings. A nil logger is
// replaced with a no-op one.
func NewResolver(settings config.Settings, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{settings: settings, log: log.Named("location")}
}

// PathEnvVar returns the name of the per-tool search path variable,
// e.g. "ocrd-tesserocr-recognize" → "OCRD_TESSEROCR_RECOGNIZE_PATH".
func PathEnvVar(tool string) string {
	return strings.ToUpper(strings.ReplaceAll(tool, "-", "_")) + "_PATH"
}

// pathEnvDirs returns the directories listed in the per-tool variable.
func pathEnvDirs(tool string) []string {
	var dirs []string
	for _, dir := range strings.Split(os.Getenv(PathEnvVar(tool)), string(os.PathListSeparator)) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// ToolDataDir returns the per-user directory of a tool's resources.
func (r *Resolver) ToolDataDir(tool string) string {
	return filepath.Join(r.settings.DataResourcesDir(), tool)
}

// ToolSystemDir returns the system-wide directory of a tool's resources.
func (r *Resolver) ToolSystemDir(tool string) string {
	return filepath.Join(r.settings.SystemDir, tool)
}

// CandidatePaths lists, in lookup order, every path fileName may be found
// at for tool: the working directory, each entry of the per-tool path
// variable, the data home, the system root and finally moduleDir when known.
// Candidates need not exist.
func (r *Resolver) CandidatePaths(tool, fileName, moduleDir string) []string {
	candidates := []string{filepath.Join(r.settings.WorkingDir(), fileName)}
	for _, dir := range pathEnvDirs(tool) {
		candidates = append(candidates, filepath.Join(dir, fileName))
	}
	candidates = append(candidates,
		filepath.Join(r.ToolDataDir(tool), fileName),
		filepath.Join(r.ToolSystemDir(tool), fileName),
	)
	if moduleDir != "" {
		candidates = append(candidates, filepath.Join(moduleDir, fileName))
	}
	return candidates
}

// ResolveResource returns the first candidate path that exists.
func (r *Resolver) ResolveResource(tool, fileName, moduleDir string) (string, error) {
	for _, candidate := range r.CandidatePaths(tool, fileName, moduleDir) {
		if _, err := os.Stat(candidate); err == nil {
			r.log.Debug("resolved resource", zap.String("tool", tool), zap.String("path", candidate))
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s for %s: %w", fileName, tool, ErrResourceNotFound)
}

// ListInstalled enumerates what is on disk for tool under the locations its
// policy allows. The per-tool path variable is always consulted and the
// working directory never is. Data, system and path-variable roots
// contribute their immediate children; the module directory is walked fully
// with code and packaging noise filtered out. Results are sorted by
// (base, path) and anything named .git is dropped.
func (r *Resolver) ListInstalled(tool, moduleDir string, locations []string) ([]Installed, error) {
	if len(locations) == 0 {
		locations = manifest.DefaultLocations
	}
	allowed := make(map[string]bool, len(locations))
	for _, loc := range locations {
		allowed[loc] = true
	}

	var found []Installed
	appendChildren := func(base string) error {
		if !isDir(base) {
			return nil
		}
		entries, err := os.ReadDir(base)
		if err != nil {
			return fmt.Errorf("listing %s: %w", base, err)
		}
		for _, entry := range entries {
			found = append(found, Installed{Base: base, Path: filepath.Join(base, entry.Name())})
		}
		return nil
	}

	for _, dir := range pathEnvDirs(tool) {
		if err := appendChildren(dir); err != nil {
			return nil, err
		}
	}
	if allowed[manifest.LocationData] {
		if err := appendChildren(r.ToolDataDir(tool)); err != nil {
			return nil, err
		}
	}
	if allowed[manifest.LocationSystem] {
		if err := appendChildren(r.ToolSystemDir(tool)); err != nil {
			return nil, err
		}
	}
	if allowed[manifest.LocationModule] && moduleDir != "" && isDir(moduleDir) {
		err := filepath.WalkDir(moduleDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(moduleDir, path)
			if err != nil {
				return err
			}
			if isModuleNoise(rel) {
				return nil
			}
			found = append(found, Installed{Base: moduleDir, Path: path})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking module directory %s: %w", moduleDir, err)
		}
	}

	result := found[:0]
	for _, inst := range found {
		if filepath.Base(inst.Path) == ".git" {
			continue
		}
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Base != result[j].Base {
			return result[i].Base < result[j].Base
		}
		return result[i].Path < result[j].Path
	})
	r.log.Debug("listed installed resources", zap.String("tool", tool), zap.Int("count", len(result)))
	return result, nil
}

// LocationOf maps a resource path back to the location it lives in:
// "system", "data", "cwd", or the path itself when none applies.
func (r *Resolver) LocationOf(path string) string {
	switch {
	case within(r.settings.SystemDir, path):
		return manifest.LocationSystem
	case within(r.settings.DataResourcesDir(), path):
		return manifest.LocationData
	case within(r.settings.WorkingDir(), path):
		return manifest.LocationCwd
	default:
		return path
	}
}

// DirFor returns the resource root of a named location. The module
// location has no fixed root and is rejected.
func (r *Resolver) DirFor(location string) (string, error) {
	switch location {
	case manifest.LocationData:
		return r.settings.DataResourcesDir(), nil
	case manifest.LocationSystem:
		return r.settings.SystemDir, nil
	case manifest.LocationCwd:
		return r.settings.WorkingDir(), nil
	default:
		return "", fmt.Errorf("location %q has no fixed resource directory", location)
	}
}

func within(root, path string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
