package discovery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds a single --dump-json or --dump-module-dir call.
const DefaultProbeTimeout = 30 * time.Second

// ExecIntrospector runs the tool itself: `<tool> --dump-json` for the
// description and `<tool> --dump-module-dir` for the module directory.
// Successful answers are cached per executable for the life of the value.
type ExecIntrospector struct {
	// Timeout bounds each probe. Zero means DefaultProbeTimeout.
	Timeout time.Duration

	log *zap.Logger

	mu          sync.Mutex
	descCache   map[string]*manifest.ToolDescription
	moduleCache map[string]string
}

// NewExecIntrospector returns an introspector that logs through log.
func NewExecIntrospector(log *zap.Logger) *ExecIntrospector {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecIntrospector{
		log:         log.Named("discovery"),
		descCache:   make(map[string]*manifest.ToolDescription),
		moduleCache: make(map[string]string),
	}
}

// Describe runs `<executable> --dump-json`. When the tool prints nothing
// usable but reports a module directory holding a tool manifest file, the
// description is read from there instead.
func (e *ExecIntrospector) Describe(ctx context.Context, executable string) (*manifest.ToolDescription, error) {
	e.mu.Lock()
	if td, ok := e.descCache[executable]; ok {
		e.mu.Unlock()
		return td, nil
	}
	e.mu.Unlock()

	bin, err := exec.LookPath(executable)
	if err != nil {
		return nil, &DiscoveryError{Executable: executable, Op: "describe", Err: fmt.Errorf("%w: %v", ErrNotInstalled, err)}
	}

	out, runErr := e.run(ctx, bin, "--dump-json")
	var td *manifest.ToolDescription
	if runErr == nil {
		td, runErr = manifest.ParseToolDescription(out)
	}
	if runErr != nil {
		e.log.Debug("--dump-json failed, trying tool manifest", zap.String("executable", executable), zap.Error(runErr))
		td, err = e.describeFromModule(ctx, executable)
		if err != nil {
			return nil, &DiscoveryError{Executable: executable, Op: "describe", Err: runErr}
		}
	}
	if td.Executable == "" {
		td.Executable = filepath.Base(executable)
	}

	e.mu.Lock()
	e.descCache[executable] = td
	e.mu.Unlock()
	return td, nil
}

// ModuleDir runs `<executable> --dump-module-dir`.
func (e *ExecIntrospector) ModuleDir(ctx context.Context, executable string) (string, error) {
	e.mu.Lock()
	if dir, ok := e.moduleCache[executable]; ok {
		e.mu.Unlock()
		return dir, nil
	}
	e.mu.Unlock()

	bin, err := exec.LookPath(executable)
	if err != nil {
		return "", &DiscoveryError{Executable: executable, Op: "module dir", Err: fmt.Errorf("%w: %v", ErrNotInstalled, err)}
	}
	out, err := e.run(ctx, bin, "--dump-module-dir")
	if err != nil {
		return "", &DiscoveryError{Executable: executable, Op: "module dir", Err: err}
	}
	dir := strings.TrimRight(string(out), "\r\n")

	e.mu.Lock()
	e.moduleCache[executable] = dir
	e.mu.Unlock()
	return dir, nil
}

func (e *ExecIntrospector) describeFromModule(ctx context.Context, executable string) (*manifest.ToolDescription, error) {
	dir, err := e.ModuleDir(ctx, executable)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("%s reports no module directory", executable)
	}
	return manifest.ParseToolManifestFile(filepath.Join(dir, branding.ToolManifestFile()), filepath.Base(executable))
}

func (e *ExecIntrospector) run(ctx context.Context, bin string, arg string) ([]byte, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// #nosec G204 -- bin comes from a PATH lookup of a tool name.
	cmd := exec.CommandContext(ctx, bin, arg)
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", filepath.Base(bin), arg, err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", filepath.Base(bin), arg, err)
	}
	return stdout.Bytes(), nil
}
