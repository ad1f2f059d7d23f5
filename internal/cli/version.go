package cli

import (
	"fmt"

	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/spf13/cobra"
)

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func (b buildInfo) String() string {
	return fmt.Sprintf("%s version %s (commit: %s, built: %s)", branding.CLIName(), b.Version, b.Commit, b.Date)
}

func newVersionCmd() *cobra.Command {
	var short, asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the build version of " + branding.CLIName(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := buildInfo{Version: buildVersion, Commit: buildCommit, Date: buildDate}
			w := cmd.OutOrStdout()
			switch {
			case short:
				_, err := fmt.Fprintln(w, info.Version)
				return err
			case asJSON:
				return writeJSON(w, info)
			}
			_, err := fmt.Fprintln(w, info)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print the version number only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build info as JSON")
	return cmd
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
