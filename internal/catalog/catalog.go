// Package catalog carries the bundled default resource list: the read-only
// set of resources known at build time. It is compiled into the binary and
// consulted before the user list.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ocrd-go/resmgr/internal/manifest"
)

//go:embed resource_list.yml
var bundled []byte

// tmpSuffix is appended to the target path during an atomic export.
const tmpSuffix = ".tmp"

// Origin names the bundled list in log output and errors.
const Origin = "bundled resource_list.yml"

// Bundled returns a copy of the raw bundled list.
func Bundled() []byte {
	out := make([]byte, len(bundled))
	copy(out, bundled)
	return out
}

// List parses the bundled list.
func List() (manifest.List, error) {
	return manifest.ParseList(bundled)
}

// WriteTo exports the bundled list to path. The write is atomic: it goes to
// a .tmp file first and is renamed on success.
func WriteTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, bundled, 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}
