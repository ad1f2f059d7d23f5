package location

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ocrd-go/resmgr/internal/manifest"
)

// Media types with special meaning in a tool's resource parameters.
const (
	AnyType       = "*/*"
	DirectoryType = "text/directory"
)

// ResourceTypes returns the media types a tool's resource parameters accept:
// the content-type of every string parameter with format uri. When the tool
// is unknown (nil) or declares no such parameter the result is exactly
// ["*/*"], meaning any file or directory.
func ResourceTypes(desc *manifest.ToolDescription) []string {
	if desc == nil {
		return []string{AnyType}
	}
	var types []string
	for _, param := range desc.Parameters {
		if param.Type != "string" || param.Format != "uri" || param.ContentType == "" {
			continue
		}
		for _, mime := range strings.Split(param.ContentType, ",") {
			if mime = strings.TrimSpace(mime); mime != "" {
				types = append(types, mime)
			}
		}
	}
	if len(types) == 0 {
		return []string{AnyType}
	}
	return types
}

// Accepts reports whether an on-disk entry fits the accepted types.
// Directories need text/directory; when text/directory is all that is
// accepted, plain files are refused. */* accepts anything.
func Accepts(types []string, isDir bool) bool {
	hasAny, hasDir := false, false
	for _, t := range types {
		switch t {
		case AnyType:
			hasAny = true
		case DirectoryType:
			hasDir = true
		}
	}
	if hasAny {
		return true
	}
	if isDir {
		return hasDir
	}
	return !(len(types) == 1 && hasDir)
}

// DirSize returns the size of a file, or the aggregate size of every file
// below a directory.
func DirSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	return total, err
}
