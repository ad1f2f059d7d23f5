package location

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/stretchr/testify/require"
)

type testTree struct {
	settings config.Settings
	resolver *Resolver
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	root := t.TempDir()
	s := config.Settings{
		DataHome:   filepath.Join(root, "data"),
		ConfigHome: filepath.Join(root, "config"),
		SystemDir:  filepath.Join(root, "system"),
		Cwd:        filepath.Join(root, "cwd"),
	}
	for _, dir := range []string{s.DataHome, s.ConfigHome, s.SystemDir, s.Cwd} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return &testTree{settings: s, resolver: NewResolver(s, nil)}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPathEnvVar(t *testing.T) {
	tests := map[string]string{
		"ocrd-x":                   "OCRD_X_PATH",
		"ocrd-tesserocr-recognize": "OCRD_TESSEROCR_RECOGNIZE_PATH",
		"plain":                    "PLAIN_PATH",
	}
	for tool, want := range tests {
		if got := PathEnvVar(tool); got != want {
			t.Errorf("PathEnvVar(%q) = %q, want %q", tool, got, want)
		}
	}
}

func TestCandidatePathsOrder(t *testing.T) {
	tt := newTestTree(t)
	t.Setenv("OCRD_X_PATH", "/opt/a:/opt/b")

	got := tt.resolver.CandidatePaths("ocrd-x", "m.bin", "/mod")
	want := []string{
		filepath.Join(tt.settings.Cwd, "m.bin"),
		"/opt/a/m.bin",
		"/opt/b/m.bin",
		filepath.Join(tt.settings.DataHome, "ocrd-resources", "ocrd-x", "m.bin"),
		filepath.Join(tt.settings.SystemDir, "ocrd-x", "m.bin"),
		"/mod/m.bin",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CandidatePaths (-want +got):\n%s", diff)
	}
}

func TestCandidatePathsWithoutModuleOrEnv(t *testing.T) {
	tt := newTestTree(t)
	t.Setenv("OCRD_X_PATH", "")

	got := tt.resolver.CandidatePaths("ocrd-x", "m.bin", "")
	require.Len(t, got, 3)
	require.Equal(t, filepath.Join(tt.settings.SystemDir, "ocrd-x", "m.bin"), got[2])
}

func TestResolveResource(t *testing.T) {
	tt := newTestTree(t)
	dataPath := filepath.Join(tt.settings.DataHome, "ocrd-resources", "ocrd-x", "m.bin")
	writeFile(t, dataPath, "data")

	got, err := tt.resolver.ResolveResource("ocrd-x", "m.bin", "")
	require.NoError(t, err)
	require.Equal(t, dataPath, got)

	// The working directory shadows the data home.
	cwdPath := filepath.Join(tt.settings.Cwd, "m.bin")
	writeFile(t, cwdPath, "cwd")
	got, err = tt.resolver.ResolveResource("ocrd-x", "m.bin", "")
	require.NoError(t, err)
	require.Equal(t, cwdPath, got)

	_, err = tt.resolver.ResolveResource("ocrd-x", "missing.bin", "")
	require.True(t, errors.Is(err, ErrResourceNotFound))
}

func TestListInstalled(t *testing.T) {
	tt := newTestTree(t)
	envDir := t.TempDir()
	t.Setenv("OCRD_X_PATH", envDir)
	moduleDir := t.TempDir()

	dataDir := filepath.Join(tt.settings.DataHome, "ocrd-resources", "ocrd-x")
	systemDir := filepath.Join(tt.settings.SystemDir, "ocrd-x")
	writeFile(t, filepath.Join(dataDir, "b.bin"), "b")
	writeFile(t, filepath.Join(dataDir, "a.bin"), "a")
	writeFile(t, filepath.Join(dataDir, "model", "inner.bin"), "inner")
	writeFile(t, filepath.Join(dataDir, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(systemDir, "sys.bin"), "sys")
	writeFile(t, filepath.Join(envDir, "env.bin"), "env")
	writeFile(t, filepath.Join(tt.settings.Cwd, "cwd.bin"), "cwd")

	writeFile(t, filepath.Join(moduleDir, "data", "weights.bin"), "w")
	writeFile(t, filepath.Join(moduleDir, "__init__.py"), "")
	writeFile(t, filepath.Join(moduleDir, "__pycache__", "x.cpython-311.pyc"), "")
	writeFile(t, filepath.Join(moduleDir, "ocrd-tool.json"), "{}")
	writeFile(t, filepath.Join(moduleDir, "pkg.egg-info", "PKG-INFO"), "")
	writeFile(t, filepath.Join(moduleDir, "LICENSE.txt"), "")
	writeFile(t, filepath.Join(moduleDir, ".git", "objects", "ab", "cdef"), "")

	got, err := tt.resolver.ListInstalled("ocrd-x", moduleDir, manifest.DefaultLocations)
	require.NoError(t, err)

	want := []Installed{
		{Base: dataDir, Path: filepath.Join(dataDir, "a.bin")},
		{Base: dataDir, Path: filepath.Join(dataDir, "b.bin")},
		{Base: dataDir, Path: filepath.Join(dataDir, "model")},
		{Base: envDir, Path: filepath.Join(envDir, "env.bin")},
		{Base: moduleDir, Path: filepath.Join(moduleDir, "data", "weights.bin")},
		{Base: systemDir, Path: filepath.Join(systemDir, "sys.bin")},
	}
	sort.Slice(want, func(i, j int) bool {
		if want[i].Base != want[j].Base {
			return want[i].Base < want[j].Base
		}
		return want[i].Path < want[j].Path
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListInstalled (-want +got):\n%s", diff)
	}
}

func TestListInstalledHonorsPolicy(t *testing.T) {
	tt := newTestTree(t)
	t.Setenv("OCRD_X_PATH", "")
	moduleDir := t.TempDir()
	writeFile(t, filepath.Join(tt.settings.DataHome, "ocrd-resources", "ocrd-x", "a.bin"), "a")
	writeFile(t, filepath.Join(tt.settings.SystemDir, "ocrd-x", "s.bin"), "s")
	writeFile(t, filepath.Join(moduleDir, "m.bin"), "m")

	got, err := tt.resolver.ListInstalled("ocrd-x", moduleDir, []string{manifest.LocationModule})
	require.NoError(t, err)
	require.Equal(t, []Installed{{Base: moduleDir, Path: filepath.Join(moduleDir, "m.bin")}}, got)
}

func TestListInstalledNothingThere(t *testing.T) {
	tt := newTestTree(t)
	t.Setenv("OCRD_X_PATH", "")
	got, err := tt.resolver.ListInstalled("ocrd-x", "", nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLocationOf(t *testing.T) {
	tt := newTestTree(t)
	r := tt.resolver
	require.Equal(t, "system", r.LocationOf(filepath.Join(tt.settings.SystemDir, "ocrd-x", "a")))
	require.Equal(t, "data", r.LocationOf(filepath.Join(tt.settings.DataHome, "ocrd-resources", "ocrd-x", "a")))
	require.Equal(t, "cwd", r.LocationOf(filepath.Join(tt.settings.Cwd, "a")))
	require.Equal(t, "/elsewhere/a", r.LocationOf("/elsewhere/a"))
}

func TestDirFor(t *testing.T) {
	tt := newTestTree(t)
	dir, err := tt.resolver.DirFor("data")
	require.NoError(t, err)
	require.Equal(t, tt.settings.DataResourcesDir(), dir)

	dir, err = tt.resolver.DirFor("system")
	require.NoError(t, err)
	require.Equal(t, tt.settings.SystemDir, dir)

	_, err = tt.resolver.DirFor("module")
	require.Error(t, err)
}
