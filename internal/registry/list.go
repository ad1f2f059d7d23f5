package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"go.uber.org/zap"
)

// ToolResources pairs a tool with descriptors selected for it. Known is
// false when the tool is absent from the registry altogether, as opposed
// to present with nothing matching.
type ToolResources struct {
	Tool      string                `json:"executable"`
	Known     bool                  `json:"known"`
	Resources []manifest.Descriptor `json:"resources"`
}

// ListOptions selects what ListAvailable returns.
type ListOptions struct {
	// Tool is a glob over tool names. Empty selects every tool.
	Tool string
	// Dynamic asks matching executables on the search path for the
	// resources they declare before listing.
	Dynamic bool
	// Name and URL, when set, keep only descriptors with that exact value.
	Name string
	URL  string
}

// ListAvailable returns the known resources of every tool matching
// opts.Tool, in tool name order. When a named tool matches nothing, the
// result is a single entry for opts.Tool with no resources; selecting every
// tool of an empty registry yields an empty slice. The store is saved
// afterward.
func (s *Store) ListAvailable(ctx context.Context, opts ListOptions) ([]ToolResources, error) {
	if opts.Dynamic {
		if err := s.refresh(ctx, opts.Tool); err != nil {
			return nil, err
		}
	}

	var ret []ToolResources
	for _, tool := range s.Tools() {
		if opts.Tool != "" {
			if ok, _ := filepath.Match(opts.Tool, tool); !ok {
				continue
			}
		}
		tr := ToolResources{Tool: tool, Known: true, Resources: []manifest.Descriptor{}}
		for _, d := range s.db[tool] {
			if opts.Name != "" && d.Name != opts.Name {
				continue
			}
			if opts.URL != "" && d.URL != opts.URL {
				continue
			}
			tr.Resources = append(tr.Resources, d)
		}
		ret = append(ret, tr)
	}
	switch {
	case len(ret) > 0:
	case opts.Tool == "":
		ret = []ToolResources{}
	default:
		ret = []ToolResources{{Tool: opts.Tool, Resources: []manifest.Descriptor{}}}
	}

	if err := s.Save(); err != nil {
		return nil, err
	}
	return ret, nil
}

// refresh merges the resources declared by executables on the search path
// ahead of the registered ones.
func (s *Store) refresh(ctx context.Context, pattern string) error {
	if pattern == "" {
		pattern = branding.ToolPrefix() + "*"
	}
	found, err := s.scanner.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scanning for %s: %w", pattern, err)
	}
	for _, f := range found {
		if f.Description == nil || len(f.Description.Resources) == 0 {
			continue
		}
		s.log.Debug("merging declared resources",
			zap.String("executable", f.Executable), zap.Int("count", len(f.Description.Resources)))
		s.prepend(manifest.List{f.Executable: f.Description.Resources})
	}
	Dedup(s.db)
	return nil
}

// ListInstalled returns what is on disk for tool, or for every tool known
// to the registry or holding a directory under the data and system roots.
// Each entry is matched by name against the registry. Unknown entries are
// registered as stubs, except files sitting directly in the tool's module
// directory, which get a transient description. Every returned descriptor
// carries its Path. The store is saved afterward.
func (s *Store) ListInstalled(ctx context.Context, tool string) ([]ToolResources, error) {
	tools := []string{tool}
	if tool == "" {
		tools = s.installedToolCandidates()
	}

	var ret []ToolResources
	for _, t := range tools {
		_, known := s.db[t]
		resources, err := s.listInstalledFor(ctx, t)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ToolResources{Tool: t, Known: known, Resources: resources})
	}

	if err := s.Save(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) installedToolCandidates() []string {
	set := make(map[string]bool)
	for tool := range s.db {
		set[tool] = true
	}
	for _, root := range []string{s.settings.DataResourcesDir(), s.settings.SystemDir} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), branding.ToolPrefix()) {
				set[e.Name()] = true
			}
		}
	}
	tools := make([]string, 0, len(set))
	for t := range set {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

func (s *Store) listInstalledFor(ctx context.Context, tool string) ([]manifest.Descriptor, error) {
	desc, err := s.intro.Describe(ctx, tool)
	if err != nil {
		s.log.Debug("tool not introspectable, accepting any resource type",
			zap.String("tool", tool), zap.Error(err))
		desc = nil
	}
	types := location.ResourceTypes(desc)

	moduleDir := ""
	if desc != nil {
		if dir, err := s.intro.ModuleDir(ctx, tool); err == nil {
			moduleDir = dir
		}
	}

	installed, err := s.resolver.ListInstalled(tool, moduleDir, desc.Locations())
	if err != nil {
		return nil, err
	}

	resources := []manifest.Descriptor{}
	for _, inst := range installed {
		info, err := os.Stat(inst.Path)
		if err != nil {
			s.log.Debug("skipping vanished resource", zap.String("path", inst.Path), zap.Error(err))
			continue
		}
		if !location.Accepts(types, info.IsDir()) {
			continue
		}
		resType := manifest.TypeFile
		if info.IsDir() {
			resType = manifest.TypeDirectory
		}

		name := filepath.Base(inst.Path)
		d, ok := s.Find(tool, name)
		switch {
		case ok:
		case moduleDir != "" && filepath.Dir(inst.Path) == filepath.Clean(moduleDir):
			size, err := location.DirSize(inst.Path)
			if err != nil {
				return nil, err
			}
			d = manifest.Descriptor{
				Name:        name,
				URL:         inst.Path,
				Description: "Found at module",
				Type:        resType,
				Size:        size,
			}
		default:
			d, err = s.AddStub(tool, inst.Path, "", resType)
			if err != nil {
				return nil, err
			}
		}
		d.Path = inst.Path
		resources = append(resources, d)
	}
	return resources, nil
}
