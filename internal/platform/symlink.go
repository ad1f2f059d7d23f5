package platform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// CopySymlink recreates the link at src as dst with the same target.
// Windows without developer mode cannot create links, so there the file
// the link resolves to is copied instead.
func CopySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("reading link %s: %w", src, err)
	}
	linkErr := os.Symlink(target, dst)
	if linkErr == nil {
		return nil
	}
	if runtime.GOOS != "windows" {
		return fmt.Errorf("creating link %s: %w", dst, linkErr)
	}

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(src), resolved)
	}
	if err := copyResolved(resolved, dst); err != nil {
		return fmt.Errorf("copying %s in place of link %s: %w", resolved, dst, err)
	}
	return nil
}

func copyResolved(from, to string) (err error) {
	r, err := os.Open(from)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := os.Create(to)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(w, r)
	return err
}
