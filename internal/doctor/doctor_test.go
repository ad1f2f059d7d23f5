package doctor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/ocrd-go/resmgr/internal/discovery"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/registry"
	"github.com/stretchr/testify/require"
)

func newChecker(t *testing.T) (*Checker, string) {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ocrd-a"), []byte("#!/bin/sh\n"), 0755))

	intro := &discovery.StaticIntrospector{Tools: map[string]*manifest.ToolDescription{
		"ocrd-a": {Resources: []manifest.Descriptor{{Name: "m", URL: "https://example.org/m", Description: "m"}}},
	}}
	scanner := discovery.NewScanner(intro, nil)
	scanner.PathList = bin

	return &Checker{
		Settings: config.Settings{
			DataHome:   filepath.Join(root, "data"),
			ConfigHome: filepath.Join(root, "config"),
			SystemDir:  filepath.Join(root, "system"),
		},
		Scanner: scanner,
	}, root
}

func TestRunReportsMissingDataDir(t *testing.T) {
	c, _ := newChecker(t)
	var out bytes.Buffer
	problems, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	require.Equal(t, 1, problems)
	require.Contains(t, out.String(), "[MISS] "+c.Settings.DataResourcesDir())
	require.Contains(t, out.String(), "[INFO] "+c.Settings.SystemDir+" does not exist")
	require.Contains(t, out.String(), "created on first use")
	require.Contains(t, out.String(), "ocrd-a (")
	require.Contains(t, out.String(), "1 resources declared")
}

func TestRunFixes(t *testing.T) {
	c, _ := newChecker(t)
	c.Fix = true
	userList := c.Settings.UserListPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userList), 0755))
	require.NoError(t, os.WriteFile(userList, []byte("ocrd-a:\n  - name: m\n    url: https://example.org/m\n    description: m\n"), 0644))
	require.NoError(t, os.WriteFile(userList+registry.TempSuffix, []byte("partial"), 0644))

	var out bytes.Buffer
	problems, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	require.Zero(t, problems, out.String())
	require.DirExists(t, c.Settings.DataResourcesDir())
	require.NoFileExists(t, userList+registry.TempSuffix)
	require.Contains(t, out.String(), "[ OK ] "+userList)

	out.Reset()
	problems, err = c.Run(context.Background(), &out)
	require.NoError(t, err)
	require.Zero(t, problems)
	require.NotContains(t, out.String(), "FIX")
}

func TestRunFlagsInvalidUserList(t *testing.T) {
	c, _ := newChecker(t)
	require.NoError(t, os.MkdirAll(c.Settings.DataResourcesDir(), 0755))
	userList := c.Settings.UserListPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(userList), 0755))
	require.NoError(t, os.WriteFile(userList, []byte("ocrd-a:\n  - name: m\n"), 0644))

	var out bytes.Buffer
	problems, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	require.Equal(t, 1, problems)
	require.Contains(t, out.String(), "does not match the resource list schema")
}

func TestRunRejectsFileAsDataDir(t *testing.T) {
	c, _ := newChecker(t)
	dir := c.Settings.DataResourcesDir()
	require.NoError(t, os.MkdirAll(filepath.Dir(dir), 0755))
	require.NoError(t, os.WriteFile(dir, nil, 0644))

	var out bytes.Buffer
	problems, err := c.Run(context.Background(), &out)
	require.NoError(t, err)
	require.Equal(t, 1, problems)
	require.Contains(t, out.String(), "is not a directory")
}
