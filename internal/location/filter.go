package location

import (
	"path/filepath"
	"strings"

	"github.com/ocrd-go/resmgr/internal/branding"
)

// moduleNoisePatterns match files in a module directory that are code,
// caches or packaging metadata rather than resources. A pattern ending in
// "/*" excludes everything below a directory matching its first part.
var moduleNoisePatterns = []string{
	"*.py", "*.py[cod]", "*~", ".*.swp", "*.swo",
	"__pycache__/*", "*.egg-info/*", "*.egg",
	"copyright.txt", "LICENSE*", "README.md", "MANIFEST",
	"TAGS", ".DS_Store",
	"*.so",
	"*.mo", "*.pot",
	"*.log", "*.orig", "*.BAK",
	".git/*",
	"environment.pickle", "resource_list.yml", "lib.bash",
}

// isModuleNoise reports whether rel, a slash or separator delimited path
// relative to the module directory, should not be listed as a resource.
func isModuleNoise(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	name := parts[len(parts)-1]
	if name == branding.ToolManifestFile() {
		return true
	}
	for _, pattern := range moduleNoisePatterns {
		if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
			for _, ancestor := range parts[:len(parts)-1] {
				if m, _ := filepath.Match(dir, ancestor); m {
					return true
				}
			}
			continue
		}
		if m, _ := filepath.Match(pattern, name); m {
			return true
		}
	}
	return false
}
