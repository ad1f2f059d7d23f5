package cli

import (
	"fmt"

	"github.com/ocrd-go/resmgr/internal/catalog"
	"github.com/ocrd-go/resmgr/internal/manifest"
	"github.com/spf13/cobra"
)

func init() {
	catalogCmd.AddCommand(catalogExportCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect resource lists",
	Long: `Work with resource lists: export the list bundled into this binary, or
check a list file against the resource list schema before shipping it.`,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export [PATH]",
	Short: "Write the bundled resource list to PATH or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			_, err := cmd.OutOrStdout().Write(catalog.Bundled())
			return err
		}
		if err := catalog.WriteTo(args[0]); err != nil {
			return fmt.Errorf("exporting bundled list: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
		return nil
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a resource list against the schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := manifest.ValidateListFile(args[0])
		if err != nil {
			return err
		}
		if result.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s is valid\n", okMark.Sprint("✓"), args[0])
			return nil
		}
		for _, msg := range result.Messages() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", msg)
		}
		return fmt.Errorf("%s: %d schema violation(s)", args[0], len(result.Issues))
	},
}
