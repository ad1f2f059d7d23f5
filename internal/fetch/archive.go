package fetch

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ocrd-go/resmgr/internal/location"
	"github.com/ulikunitz/xz"
	"github.com/wailsapp/mimetype"
	"go.uber.org/zap"
)

const (
	archiveFileName = "download.tar.xx"
	extractDirName  = "out"
)

// Media types with an extractor.
const (
	MediaZip  = "application/zip"
	MediaGzip = "application/gzip"
	MediaXz   = "application/x-xz"
	MediaZstd = "application/zstd"
	MediaTar  = "application/x-tar"
)

// fromArchive fetches the archive at req.URL into a scratch directory,
// unpacks it there, and copies req.PathInArchive to dest. The scratch
// directory is removed on return.
func (f *Fetcher) fromArchive(ctx context.Context, req Request, dest string) error {
	scratch, err := os.MkdirTemp(f.tempDir, "resmgr-archive-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	archive := filepath.Join(scratch, archiveFileName)
	if err := f.transfer(ctx, req.URL, archive, req.Progress); err != nil {
		return err
	}

	out := filepath.Join(scratch, extractDirName)
	if err := os.Mkdir(out, location.DirPermNormal); err != nil {
		return err
	}
	media, err := SniffArchive(archive)
	if err != nil {
		return err
	}
	f.log.Info("extracting archive", zap.String("type", media), zap.String("dir", out))
	if err := extract(archive, media, out); err != nil {
		return err
	}

	inner := req.PathInArchive
	if inner == "" {
		inner = "."
	}
	src := filepath.Join(out, filepath.FromSlash(inner))
	if !isSubpath(out, src) {
		return fmt.Errorf("path %q leaves the archive", inner)
	}
	f.log.Info("copying from archive", zap.String("path_in_archive", inner), zap.String("dest", dest))
	return f.copyLocal(ctx, src, dest, nil)
}

// SniffArchive detects the media type of the archive at path from its
// content and returns the supported type it is, or ErrUnsupportedArchive.
// Container formats built on zip (jar, docx and friends) count as zip.
func SniffArchive(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detecting archive type: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, supported := range []string{MediaZip, MediaGzip, MediaXz, MediaZstd, MediaTar} {
			if m.Is(supported) {
				return supported, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, mt.String())
}

func extract(archive, media, dest string) error {
	if media == MediaZip {
		return extractZip(archive, dest)
	}

	file, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	var r io.Reader
	switch media {
	case MediaGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case MediaXz:
		xr, err := xz.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xr
	case MediaZstd:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case MediaTar:
		r = file
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, media)
	}
	return extractTar(r, dest)
}

// extractTar unpacks a tar stream into dest, rejecting entries whose path
// would land outside it.
func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	dest = filepath.Clean(dest)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		target, ok, err := entryTarget(dest, hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, location.DirPermNormal); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, os.FileMode(hdr.Mode).Perm(), tr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linked := filepath.Join(filepath.Dir(target), filepath.FromSlash(hdr.Linkname))
			if filepath.IsAbs(hdr.Linkname) || !isSubpath(dest, linked) {
				return fmt.Errorf("invalid tar link %q -> %q", hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), location.DirPermNormal); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// Hard links, devices and extended headers are not resources.
		}
	}
}

func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	dest = filepath.Clean(dest)
	for _, zf := range r.File {
		target, ok, err := entryTarget(dest, zf.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, location.DirPermNormal); err != nil {
				return err
			}
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening zip entry: %w", err)
		}
		err = writeEntry(target, zf.Mode().Perm(), rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// entryTarget maps an archive entry name to its path under dest. ok is
// false for entries naming the root itself.
func entryTarget(dest, name string) (target string, ok bool, err error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if clean == "." || clean == "" {
		return "", false, nil
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, fmt.Errorf("invalid archive entry %q", name)
	}
	target = filepath.Join(dest, filepath.FromSlash(clean))
	if !isSubpath(dest, target) {
		return "", false, fmt.Errorf("invalid archive entry %q", name)
	}
	return target, true, nil
}

func writeEntry(target string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), location.DirPermNormal); err != nil {
		return err
	}
	if mode == 0 {
		mode = location.FilePermNormal
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", target, err)
	}
	return out.Close()
}

func isSubpath(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
