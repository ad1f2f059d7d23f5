//go:build integration

package integration_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ocrd-go/resmgr/internal/config"
)

// testEnv holds the isolated directories and the origin server resources
// are downloaded from.
type testEnv struct {
	Settings  config.Settings
	BinDir    string // on PATH, holds the fake processor
	ModuleDir string // reported by the fake processor's --dump-module-dir
	Origin    *httptest.Server
}

// setupTestEnv creates isolated directories, puts only BinDir on PATH and
// starts an origin serving a model file and a zipped model directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake processor is a shell script")
	}

	root := t.TempDir()
	env := &testEnv{
		Settings: config.Settings{
			DataHome:   filepath.Join(root, "data"),
			ConfigHome: filepath.Join(root, "config"),
			SystemDir:  filepath.Join(root, "system"),
			Cwd:        filepath.Join(root, "workspace"),
		},
		BinDir:    filepath.Join(root, "bin"),
		ModuleDir: filepath.Join(root, "module"),
	}
	for _, dir := range []string{env.BinDir, env.ModuleDir, env.Settings.Cwd} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}
	t.Setenv("PATH", env.BinDir)

	archive := buildZip(t, map[string]string{
		"data/weights/model.h5":  "hdf5 weights",
		"data/weights/vocab.txt": "a\nb\nc\n",
		"README":                 "not wanted",
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/model1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "model one")
	})
	mux.HandleFunc("/weights.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	})
	env.Origin = httptest.NewServer(mux)
	t.Cleanup(env.Origin.Close)
	return env
}

// installProcessor writes an executable ocrd-x that declares model1 and the
// zipped weights, and stores its resources in the data location by default.
// PATH holds only BinDir, so the script sticks to shell builtins.
func installProcessor(t *testing.T, env *testEnv) {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
case "$1" in
--dump-json)
echo '{
  "executable": "ocrd-x",
  "version": "1.0.0",
  "resource_locations": ["data", "cwd", "module"],
  "resources": [
    {"name": "model1", "url": "%[1]s/model1", "description": "first model", "size": 9},
    {"name": "weights", "url": "%[1]s/weights.zip", "description": "zipped weights",
     "type": "archive", "path_in_archive": "data/weights"}
  ]
}'
;;
--dump-module-dir)
echo '%[2]s'
;;
*)
exit 1
;;
esac
`, env.Origin.URL, env.ModuleDir)
	path := filepath.Join(env.BinDir, "ocrd-x")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake processor: %v", err)
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if string(got) != want {
		t.Errorf("%s = %q, want %q", path, got, want)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s not to exist", path)
	}
}
