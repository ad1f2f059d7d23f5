package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// ParseList decodes a resource list document. An empty document yields an
// empty list. Callers validate with ValidateList first.
func ParseList(data []byte) (List, error) {
	list := List{}
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing resource list: %w", err)
	}
	if list == nil {
		list = List{}
	}
	return list, nil
}

// MarshalList encodes a list with the same layout ParseList reads.
func MarshalList(list List) ([]byte, error) {
	if list == nil {
		list = List{}
	}
	data, err := yaml.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("encoding resource list: %w", err)
	}
	return data, nil
}

// ParseToolDescription decodes the JSON a processor prints for --dump-json.
func ParseToolDescription(data []byte) (*ToolDescription, error) {
	var td ToolDescription
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("parsing tool description: %w", err)
	}
	if len(td.ResourceLocations) == 0 {
		td.ResourceLocations = append([]string(nil), DefaultLocations...)
	}
	return &td, nil
}

// toolManifest is the layout of the tool manifest file a processor ships in
// its module directory: one document describing every executable.
type toolManifest struct {
	Version string                     `json:"version"`
	Tools   map[string]ToolDescription `json:"tools"`
}

// ParseToolManifestFile reads the tool manifest at path and returns the
// description of executable. The manifest-level version is used when the
// tool entry carries none.
func ParseToolManifestFile(path, executable string) (*ToolDescription, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var tm toolManifest
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("parsing tool manifest %s: %w", path, err)
	}
	td, ok := tm.Tools[executable]
	if !ok {
		return nil, fmt.Errorf("tool manifest %s does not describe %s", path, executable)
	}
	if td.Executable == "" {
		td.Executable = executable
	}
	if td.Version == "" {
		td.Version = tm.Version
	}
	if len(td.ResourceLocations) == 0 {
		td.ResourceLocations = append([]string(nil), DefaultLocations...)
	}
	return &td, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
