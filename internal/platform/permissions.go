package platform

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// IsExecutable reports whether info describes a file the current platform
// would run: any execute bit on Unix, a .exe suffix on Windows.
func IsExecutable(info fs.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(info.Name()), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}

// ToolName returns the executable name of path without directory and, on
// Windows, without the .exe suffix.
func ToolName(path string) string {
	name := filepath.Base(path)
	if runtime.GOOS == "windows" {
		if ext := filepath.Ext(name); strings.EqualFold(ext, ".exe") {
			name = strings.TrimSuffix(name, ext)
		}
	}
	return name
}
