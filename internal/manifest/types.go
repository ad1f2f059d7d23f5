package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Resource types.
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
	TypeArchive   = "archive"
)

// Unknown is the placeholder written for a url or version range nobody knows.
const Unknown = "???"

// Parameter usage modes.
const (
	UsageAsIs             = "as-is"
	UsageWithoutExtension = "without-extension"
)

// Location names used in a tool's resource_locations policy.
const (
	LocationData   = "data"
	LocationCwd    = "cwd"
	LocationSystem = "system"
	LocationModule = "module"
)

// DefaultLocations is the policy applied when a tool declares none.
var DefaultLocations = []string{LocationData, LocationCwd, LocationSystem, LocationModule}

// ValidResourceTypes lists the accepted descriptor types.
var ValidResourceTypes = []string{TypeFile, TypeDirectory, TypeArchive}

// Descriptor is one registry entry describing a downloadable resource.
type Descriptor struct {
	Name           string `yaml:"name" json:"name"`
	URL            string `yaml:"url" json:"url"`
	Description    string `yaml:"description" json:"description"`
	VersionRange   string `yaml:"version_range,omitempty" json:"version_range,omitempty"`
	Type           string `yaml:"type,omitempty" json:"type,omitempty"`
	Size           int64  `yaml:"size,omitempty" json:"size,omitempty"`
	PathInArchive  string `yaml:"path_in_archive,omitempty" json:"path_in_archive,omitempty"`
	ParameterUsage string `yaml:"parameter_usage,omitempty" json:"parameter_usage,omitempty"`

	// Path is where the resource was found on disk. Never persisted.
	Path string `yaml:"-" json:"path,omitempty"`
}

// ResourceType returns Type, defaulting to file.
func (d Descriptor) ResourceType() string {
	if d.Type == "" {
		return TypeFile
	}
	return d.Type
}

// ArchivePath returns PathInArchive, defaulting to the archive root.
func (d Descriptor) ArchivePath() string {
	if d.PathInArchive == "" {
		return "."
	}
	return d.PathInArchive
}

// ParameterValue returns the value a processor parameter should carry to
// reference this resource.
func (d Descriptor) ParameterValue() (string, error) {
	switch d.ParameterUsage {
	case "", UsageAsIs:
		return d.Name, nil
	case UsageWithoutExtension:
		return strings.TrimSuffix(d.Name, filepath.Ext(d.Name)), nil
	default:
		return "", fmt.Errorf("unknown parameter_usage %q for resource %s", d.ParameterUsage, d.Name)
	}
}

// SatisfiedBy reports whether toolVersion falls inside VersionRange.
// An empty or unknown range accepts any version.
func (d Descriptor) SatisfiedBy(toolVersion string) (bool, error) {
	if d.VersionRange == "" || d.VersionRange == Unknown {
		return true, nil
	}
	c, err := semver.NewConstraint(d.VersionRange)
	if err != nil {
		return false, fmt.Errorf("parsing version_range %q of %s: %w", d.VersionRange, d.Name, err)
	}
	v, err := semver.NewVersion(toolVersion)
	if err != nil {
		return false, fmt.Errorf("parsing tool version %q: %w", toolVersion, err)
	}
	return c.Check(v), nil
}

// List maps an executable name to its ordered descriptors. Order matters:
// the first descriptor with a given name wins.
type List map[string][]Descriptor

// ParameterSpec is one entry of a tool's declared parameters.
type ParameterSpec struct {
	Type        string `json:"type,omitempty"`
	Format      string `json:"format,omitempty"`
	ContentType string `json:"content-type,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ToolDescription is what a processor reports about itself.
type ToolDescription struct {
	Executable        string                   `json:"executable"`
	Version           string                   `json:"version,omitempty"`
	Description       string                   `json:"description,omitempty"`
	Parameters        map[string]ParameterSpec `json:"parameters,omitempty"`
	Resources         []Descriptor             `json:"resources,omitempty"`
	ResourceLocations []string                 `json:"resource_locations,omitempty"`
}

// Locations returns the declared resource_locations policy, or the default.
func (t *ToolDescription) Locations() []string {
	if t == nil || len(t.ResourceLocations) == 0 {
		return DefaultLocations
	}
	return t.ResourceLocations
}
