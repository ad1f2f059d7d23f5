package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/ocrd-go/resmgr/internal/registry"
)

var (
	toolHeading = color.New(color.FgCyan, color.Bold)
	okMark      = color.New(color.FgGreen)
	dimText     = color.New(color.Faint)
)

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printResources writes one block per tool. With installed set the path
// column replaces the URL column.
func printResources(w io.Writer, tools []registry.ToolResources, installed bool) {
	for i, tr := range tools {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, toolHeading.Sprint(tr.Tool))
		if len(tr.Resources) == 0 {
			fmt.Fprintln(w, dimText.Sprint("  (no resources)"))
			continue
		}

		tw := newTable(w)
		if installed {
			fmt.Fprintln(tw, "  NAME\tSIZE\tPATH\tDESCRIPTION")
		} else {
			fmt.Fprintln(tw, "  NAME\tSIZE\tURL\tDESCRIPTION")
		}
		for _, d := range tr.Resources {
			where := d.URL
			if installed {
				where = d.Path
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", d.Name, formatSize(d.Size), where, summary(d))
		}
		tw.Flush()
	}
}

// summary is the first line of a descriptor's description.
func summary(d manifest.Descriptor) string {
	line, _, _ := strings.Cut(d.Description, "\n")
	return line
}

// formatSize renders a byte count with a binary unit. Unknown sizes are "-".
func formatSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
