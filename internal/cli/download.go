package cli

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ocrd-go/resmgr/internal/manager"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	downloadLocation      string
	downloadOverwrite     bool
	downloadNoSubdir      bool
	downloadNoDynamic     bool
	downloadType          string
	downloadPathInArchive string
	downloadJobs          int
	downloadJSON          bool
)

var downloadCmd = &cobra.Command{
	Use:   "download EXECUTABLE [NAME|URL]",
	Short: "Download resources for a processor",
	Long: `Download a resource for a processor and record it in the user list.

NAME is looked up in the registry. If it is not registered but is a URL or an
existing path, it is fetched directly and registered afterward. Use '*' for
EXECUTABLE or NAME (or omit NAME) to fetch every registered resource.`,
	Example: `  resmgr download ocrd-tesserocr-recognize eng.traineddata
  resmgr download ocrd-calamari-recognize '*' --location cwd
  resmgr download ocrd-x https://example.org/model.zip --type archive --path-in-archive model`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	locations := strings.Join(manifest.DefaultLocations, ", ")
	downloadCmd.Flags().StringVarP(&downloadLocation, "location", "l", "", "Where to put the resource ("+locations+"); default is the processor's first allowed location")
	downloadCmd.Flags().BoolVarP(&downloadOverwrite, "overwrite", "o", false, "Replace resources that are already present")
	downloadCmd.Flags().BoolVar(&downloadNoSubdir, "no-subdir", false, "Do not create a subdirectory per processor")
	downloadCmd.Flags().BoolVarP(&downloadNoDynamic, "no-dynamic", "D", false, "Do not ask installed processors for their resources")
	downloadCmd.Flags().StringVarP(&downloadType, "type", "t", "", "Resource type for direct URLs (file, directory, archive)")
	downloadCmd.Flags().StringVarP(&downloadPathInArchive, "path-in-archive", "P", "", "Path to copy out of an archive")
	downloadCmd.Flags().IntVarP(&downloadJobs, "jobs", "j", 1, "Parallel transfers")
	downloadCmd.Flags().BoolVar(&downloadJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	name := manager.All
	if len(args) > 1 {
		name = args[1]
	}

	var mu sync.Mutex
	transferred := map[string]int64{}
	got, err := mgr.Download(cmd.Context(), manager.DownloadOptions{
		Tool:          args[0],
		Name:          name,
		Location:      downloadLocation,
		Overwrite:     downloadOverwrite,
		NoSubdir:      downloadNoSubdir,
		Dynamic:       !downloadNoDynamic,
		Type:          downloadType,
		PathInArchive: downloadPathInArchive,
		Jobs:          downloadJobs,
		Progress: func(tool, name string, n int64) {
			mu.Lock()
			transferred[tool+"/"+name] += n
			mu.Unlock()
		},
	})
	if err != nil {
		return err
	}

	if downloadJSON {
		return writeJSON(cmd.OutOrStdout(), got)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Path < got[j].Path })
	for _, d := range got {
		line := fmt.Sprintf("%s %s/%s -> %s", okMark.Sprint("✓"), d.Tool, d.Descriptor.Name, d.Path)
		if n := transferred[d.Tool+"/"+d.Descriptor.Name]; n > 0 {
			line += dimText.Sprintf(" (%s transferred)", formatSize(n))
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
		if v, err := d.Descriptor.ParameterValue(); err != nil {
			logger.Warn("cannot derive parameter value", zap.Error(err))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), dimText.Sprintf("  use in parameters as %q", v))
		}
	}
	return nil
}
