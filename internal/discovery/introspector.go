package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/platform"
)

// ErrNotInstalled is returned when a tool cannot be found on this host.
var ErrNotInstalled = errors.New("tool not installed")

// ToolIntrospector asks an installed tool to describe itself.
type ToolIntrospector interface {
	// Describe returns the tool's self-description. Implementations fill
	// ResourceLocations with the default policy when the tool declares none.
	Describe(ctx context.Context, executable string) (*manifest.ToolDescription, error)
	// ModuleDir returns the directory the tool ships bundled data in, or ""
	// when it has none.
	ModuleDir(ctx context.Context, executable string) (string, error)
}

// DiscoveryError reports that one executable could not be introspected.
type DiscoveryError struct {
	Executable string
	Op         string
	Err        error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Executable, e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// StaticIntrospector serves canned descriptions keyed by tool name; a full
// path is reduced to its name. Tools missing from Tools are reported as not
// installed.
type StaticIntrospector struct {
	Tools      map[string]*manifest.ToolDescription
	ModuleDirs map[string]string
}

// Describe returns the canned description of executable.
func (s *StaticIntrospector) Describe(_ context.Context, executable string) (*manifest.ToolDescription, error) {
	td, ok := s.Tools[platform.ToolName(executable)]
	if !ok || td == nil {
		return nil, &DiscoveryError{Executable: executable, Op: "describe", Err: ErrNotInstalled}
	}
	out := *td
	if len(out.ResourceLocations) == 0 {
		out.ResourceLocations = append([]string(nil), manifest.DefaultLocations...)
	}
	return &out, nil
}

// ModuleDir returns the canned module directory of executable.
func (s *StaticIntrospector) ModuleDir(_ context.Context, executable string) (string, error) {
	name := platform.ToolName(executable)
	if _, ok := s.Tools[name]; !ok {
		return "", &DiscoveryError{Executable: executable, Op: "module dir", Err: ErrNotInstalled}
	}
	return s.ModuleDirs[name], nil
}
