package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ocrd-go/resmgr/internal/fetch"
	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/registry"
	"go.uber.org/zap"
)

// All selects every registered resource (as a name) or every tool.
const All = "*"

// ErrNoSuchResource is returned when a name matches nothing registered and
// is not a URL or an existing path either.
var ErrNoSuchResource = errors.New("no such resource")

// Manager ties the registry to acquisition: it decides what to fetch and
// where, fetches it, and keeps the registry in step with what landed on
// disk. Like the Store it wraps, it is owned by one caller at a time.
type Manager struct {
	store   *registry.Store
	fetcher *fetch.Fetcher
	log     *zap.Logger
}

// New returns a Manager over store and fetcher.
func New(store *registry.Store, fetcher *fetch.Fetcher, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, fetcher: fetcher, log: log.Named("manager")}
}

// Store returns the underlying registry.
func (m *Manager) Store() *registry.Store { return m.store }

// DownloadOptions selects what Download fetches.
type DownloadOptions struct {
	// Tool is a tool name, or All.
	Tool string
	// Name is a registered resource name, All, or a URL or local path to
	// fetch directly.
	Name string
	// Location is data, system, cwd or module. Empty picks the first
	// location the tool allows.
	Location  string
	Overwrite bool
	// NoSubdir places resources directly in the location instead of a
	// per-tool subdirectory. Implied by cwd and module.
	NoSubdir bool
	// Dynamic asks installed tools for their declared resources first.
	Dynamic bool
	// Type and PathInArchive apply when Name is fetched directly.
	Type          string
	PathInArchive string
	// Jobs bounds parallel transfers. Less than one means one.
	Jobs int
	// Progress, when set, receives the byte count of every chunk
	// transferred for a resource.
	Progress func(tool, name string, n int64)
}

// Downloaded is one resource Download placed on disk.
type Downloaded struct {
	Tool       string              `json:"executable"`
	Descriptor manifest.Descriptor `json:"resource"`
	Path       string              `json:"path"`
}

type job struct {
	tool string
	desc manifest.Descriptor
	req  fetch.Request
	// direct is set when the resource was not registered beforehand.
	direct bool
	// source is the registered descriptor sharing a direct job's URL, if any.
	source *manifest.Descriptor
}

// Download fetches the resources opts selects. A name that is neither
// registered nor All is fetched directly when it looks like a URL or an
// existing path, and registered afterward. Registered resources with an
// unknown URL are skipped with a warning.
func (m *Manager) Download(ctx context.Context, opts DownloadOptions) ([]Downloaded, error) {
	if opts.Tool == "" {
		return nil, errors.New("a tool name is required")
	}
	if opts.Name == "" {
		opts.Name = All
	}

	var jobs []job
	var err error
	if opts.Name != All && opts.Tool != All && isDirect(opts.Name) {
		if _, known := m.store.Find(opts.Tool, opts.Name); !known {
			j, err := m.directJob(ctx, opts)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
	}
	if jobs == nil {
		jobs, err = m.registeredJobs(ctx, opts)
		if err != nil {
			return nil, err
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s for %s", ErrNoSuchResource, opts.Name, opts.Tool)
	}

	reqs := make([]fetch.Request, len(jobs))
	for i, j := range jobs {
		reqs[i] = j.req
	}
	paths, err := m.fetcher.DownloadAll(ctx, reqs, opts.Jobs)
	if err != nil {
		return nil, err
	}

	out := make([]Downloaded, 0, len(jobs))
	for i, j := range jobs {
		desc, err := m.record(j, paths[i])
		if err != nil {
			return nil, err
		}
		desc.Path = paths[i]
		out = append(out, Downloaded{Tool: j.tool, Descriptor: desc, Path: paths[i]})
	}
	return out, nil
}

func (m *Manager) directJob(ctx context.Context, opts DownloadOptions) (job, error) {
	resType := opts.Type
	if resType == "" {
		resType = manifest.TypeFile
	}
	desc := manifest.Descriptor{URL: opts.Name, Type: resType, PathInArchive: opts.PathInArchive}
	req, err := m.request(ctx, opts, opts.Tool, desc)
	if err != nil {
		return job{}, err
	}
	desc.Name = filepath.Base(req.Destination())
	j := job{tool: opts.Tool, desc: desc, req: req, direct: true}
	if src, ok := m.store.FindURL(opts.Tool, opts.Name); ok {
		j.source = &src
	}
	return j, nil
}

func (m *Manager) registeredJobs(ctx context.Context, opts DownloadOptions) ([]job, error) {
	list := registry.ListOptions{Tool: opts.Tool, Dynamic: opts.Dynamic}
	if opts.Tool == All {
		list.Tool = ""
	}
	if opts.Name != All {
		list.Name = opts.Name
	}
	available, err := m.store.ListAvailable(ctx, list)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, tr := range available {
		for _, d := range tr.Resources {
			if d.URL == manifest.Unknown {
				m.log.Warn("resource has no known url, skipping",
					zap.String("tool", tr.Tool), zap.String("name", d.Name))
				continue
			}
			m.checkVersion(ctx, tr.Tool, d)
			req, err := m.request(ctx, opts, tr.Tool, d)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job{tool: tr.Tool, desc: d, req: req})
		}
	}
	return jobs, nil
}

// checkVersion warns when the installed tool reports a version outside the
// resource's version_range. The download goes ahead either way.
func (m *Manager) checkVersion(ctx context.Context, tool string, d manifest.Descriptor) {
	desc, err := m.store.Introspector().Describe(ctx, tool)
	if err != nil || desc.Version == "" {
		return
	}
	ok, err := d.SatisfiedBy(desc.Version)
	switch {
	case err != nil:
		m.log.Debug("cannot compare tool version", zap.String("tool", tool), zap.String("name", d.Name), zap.Error(err))
	case !ok:
		m.log.Warn("tool version outside the resource's version range",
			zap.String("tool", tool), zap.String("name", d.Name),
			zap.String("version", desc.Version), zap.String("version_range", d.VersionRange))
	}
}

// request builds the fetch request for d, resolving the target location.
func (m *Manager) request(ctx context.Context, opts DownloadOptions, tool string, d manifest.Descriptor) (fetch.Request, error) {
	loc, err := m.targetLocation(ctx, tool, opts.Location)
	if err != nil {
		return fetch.Request{}, err
	}
	base, err := m.baseDir(ctx, tool, loc)
	if err != nil {
		return fetch.Request{}, err
	}

	req := fetch.Request{
		Tool:          tool,
		URL:           d.URL,
		BaseDir:       base,
		Overwrite:     opts.Overwrite,
		NoSubdir:      opts.NoSubdir || loc == manifest.LocationCwd || loc == manifest.LocationModule,
		Name:          d.Name,
		Type:          d.ResourceType(),
		PathInArchive: d.ArchivePath(),
	}
	if opts.Progress != nil {
		name := d.Name
		if name == "" {
			name = filepath.Base(req.Destination())
		}
		req.Progress = func(n int64) { opts.Progress(tool, name, n) }
	}
	return req, nil
}

// targetLocation settles where a tool's resource goes. An empty request
// takes the tool's first allowed location; one outside the tool's policy is
// honored with a warning.
func (m *Manager) targetLocation(ctx context.Context, tool, requested string) (string, error) {
	allowed := manifest.DefaultLocations
	if desc, err := m.store.Introspector().Describe(ctx, tool); err == nil {
		allowed = desc.Locations()
	}
	if requested == "" {
		if len(allowed) == 0 {
			return manifest.LocationData, nil
		}
		return allowed[0], nil
	}
	if !slices.Contains(manifest.DefaultLocations, requested) {
		return "", fmt.Errorf("unknown location %q (want one of %s)", requested, strings.Join(manifest.DefaultLocations, ", "))
	}
	if !slices.Contains(allowed, requested) {
		m.log.Warn("location is not among the tool's resource locations",
			zap.String("tool", tool), zap.String("location", requested), zap.Strings("allowed", allowed))
	}
	return requested, nil
}

func (m *Manager) baseDir(ctx context.Context, tool, loc string) (string, error) {
	if loc != manifest.LocationModule {
		return m.store.Resolver().DirFor(loc)
	}
	dir, err := m.store.Introspector().ModuleDir(ctx, tool)
	if err != nil {
		return "", fmt.Errorf("finding module directory of %s: %w", tool, err)
	}
	if dir == "" {
		return "", fmt.Errorf("%s has no module directory", tool)
	}
	return dir, nil
}

// record brings the registry in line with a finished download: direct
// fetches become stubs carrying their URL, registered ones are recorded
// with their size on disk. A direct fetch of a registered URL is recorded
// under its file name with the registered description and version range.
func (m *Manager) record(j job, path string) (manifest.Descriptor, error) {
	if j.direct && j.source == nil {
		return m.store.AddStub(j.tool, path, j.desc.URL, j.desc.ResourceType())
	}
	d := j.desc
	if j.source != nil {
		if known, ok := m.store.Find(j.tool, d.Name); ok {
			return known, nil
		}
		d.Description = j.source.Description
		d.VersionRange = j.source.VersionRange
		d.ParameterUsage = j.source.ParameterUsage
	}
	if size, err := location.DirSize(path); err == nil {
		d.Size = size
	}
	d.Path = ""
	if err := m.store.Record(j.tool, d); err != nil {
		return manifest.Descriptor{}, err
	}
	return d, nil
}

// Resolve returns the path a tool would load resource name from.
func (m *Manager) Resolve(ctx context.Context, tool, name string) (string, error) {
	moduleDir, err := m.store.Introspector().ModuleDir(ctx, tool)
	if err != nil {
		m.log.Debug("no module directory", zap.String("tool", tool), zap.Error(err))
		moduleDir = ""
	}
	return m.store.Resolver().ResolveResource(tool, name, moduleDir)
}

// isDirect reports whether name can be fetched without a registry entry.
func isDirect(name string) bool {
	if strings.HasPrefix(name, "https://") || strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "file://") {
		return true
	}
	_, err := os.Stat(name)
	return err == nil
}
