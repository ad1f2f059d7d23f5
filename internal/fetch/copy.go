package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ocrd-go/resmgr/internal/platform"
	"go.uber.org/zap"
)

// copyLocal copies a file, or a directory recursively, from src to dst.
func (f *Fetcher) copyLocal(ctx context.Context, src, dst string, progress func(int64)) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	if info.IsDir() {
		f.log.Info("copying directory", zap.String("src", src), zap.String("dest", dst))
		return f.copyDir(ctx, src, dst, progress)
	}
	f.log.Info("copying file", zap.String("src", src), zap.String("dest", dst))
	return f.copyFile(ctx, src, dst, progress)
}

// copyDir recursively copies src to dst. Symlinks are reproduced rather
// than followed.
func (f *Fetcher) copyDir(ctx context.Context, src, dst string, progress func(int64)) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			if err := platform.CopySymlink(srcPath, dstPath); err != nil {
				return err
			}
		case entry.IsDir():
			if err := f.copyDir(ctx, srcPath, dstPath, progress); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := f.copyFile(ctx, srcPath, dstPath, progress); err != nil {
				return err
			}
		default:
			f.log.Debug("skipping special file", zap.String("path", srcPath))
		}
	}

	return nil
}

// copyFile streams src into dst, preserving permissions.
func (f *Fetcher) copyFile(ctx context.Context, src, dst string, progress func(int64)) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	mode := location.FilePermNormal
	if info, err := in.Stat(); err == nil {
		mode = info.Mode().Perm()
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if err := f.copyChunks(ctx, out, in, progress); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile keeps the mode of an existing dst and applies the umask.
	return platform.Chmod(dst, mode)
}
