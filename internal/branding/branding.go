// Package branding provides compile-time identity values for the CLI and the
// on-disk layout it shares with the processors it serves.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName            string `yaml:"cli_name"`
	DisplayName        string `yaml:"display_name"`
	Description        string `yaml:"description"`
	EnvPrefix          string `yaml:"env_prefix"`
	GoModule           string `yaml:"go_module"`
	ToolPrefix         string `yaml:"tool_prefix"`
	ResourcesDir       string `yaml:"resources_dir"`
	ConfigSubdir       string `yaml:"config_subdir"`
	UserListFile       string `yaml:"user_list_file"`
	SystemResourcesDir string `yaml:"system_resources_dir"`
	ToolManifestFile   string `yaml:"tool_manifest_file"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:            "resmgr",
			DisplayName:        "Resource Manager",
			Description:        "Registry and downloader for processor resources",
			EnvPrefix:          "RESMGR",
			GoModule:           "github.com/ocrd-go/resmgr",
			ToolPrefix:         "ocrd-",
			ResourcesDir:       "ocrd-resources",
			ConfigSubdir:       "ocrd",
			UserListFile:       "resources.yml",
			SystemResourcesDir: "/usr/local/share/ocrd-resources",
			ToolManifestFile:   "ocrd-tool.json",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "resmgr").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// EnvPrefix returns the environment variable prefix (e.g., "RESMGR").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// ToolPrefix returns the executable name prefix every processor is expected
// to carry (e.g., "ocrd-").
func ToolPrefix() string { load(); return defaults.ToolPrefix }

// ResourcesDir returns the directory name resources are kept under inside
// the data home and the system root (e.g., "ocrd-resources").
func ResourcesDir() string { load(); return defaults.ResourcesDir }

// ConfigSubdir returns the directory under the config home holding the user list.
func ConfigSubdir() string { load(); return defaults.ConfigSubdir }

// UserListFile returns the file name of the user-editable resource list.
func UserListFile() string { load(); return defaults.UserListFile }

// SystemResourcesDir returns the fixed, system-wide resource root.
func SystemResourcesDir() string { load(); return defaults.SystemResourcesDir }

// ToolManifestFile returns the name of the tool description file shipped in
// a processor's module directory.
func ToolManifestFile() string { load(); return defaults.ToolManifestFile }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("DATA_HOME") → "RESMGR_DATA_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
