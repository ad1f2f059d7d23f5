package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/stretchr/testify/require"
)

func TestBundledListIsValid(t *testing.T) {
	result, err := manifest.ValidateList(Bundled())
	require.NoError(t, err)
	require.True(t, result.Valid, "bundled list invalid: %v", result.Messages())
}

func TestBundledListParses(t *testing.T) {
	list, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, list["ocrd-tesserocr-recognize"])

	for tool, descs := range list {
		seen := map[string]bool{}
		for _, d := range descs {
			require.False(t, seen[d.Name], "%s lists %s twice", tool, d.Name)
			seen[d.Name] = true
		}
	}
}

func TestWriteTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "resource_list.yml")
	require.NoError(t, WriteTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.Equal(Bundled(), data))
	require.NoFileExists(t, path+tmpSuffix)
}
