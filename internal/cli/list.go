package cli

import (
	"github.com/ocrd-go/resmgr/internal/registry"
	"github.com/spf13/cobra"
)

var (
	availableTool      string
	availableNoDynamic bool
	availableName      string
	availableURL       string
	availableJSON      bool

	installedTool string
	installedJSON bool
)

var listAvailableCmd = &cobra.Command{
	Use:   "list-available",
	Short: "List resources known to the registry",
	Long: `List the resources registered for each processor, from the bundled list,
the user list and, unless --no-dynamic is given, the resources that installed
processors declare themselves.`,
	Args: cobra.NoArgs,
	RunE: runListAvailable,
}

var listInstalledCmd = &cobra.Command{
	Use:   "list-installed",
	Short: "List resources present on disk",
	Long: `List the resources found in every location processors load them from.
Files nobody registered are added to the user list as stubs.`,
	Args: cobra.NoArgs,
	RunE: runListInstalled,
}

func init() {
	listAvailableCmd.Flags().StringVarP(&availableTool, "executable", "e", "", "Glob over processor names, e.g. 'ocrd-tess*'")
	listAvailableCmd.Flags().BoolVarP(&availableNoDynamic, "no-dynamic", "D", false, "Do not ask installed processors for their resources")
	listAvailableCmd.Flags().StringVarP(&availableName, "name", "n", "", "Only resources with this name")
	listAvailableCmd.Flags().StringVarP(&availableURL, "url", "u", "", "Only resources with this URL")
	listAvailableCmd.Flags().BoolVar(&availableJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listAvailableCmd)

	listInstalledCmd.Flags().StringVarP(&installedTool, "executable", "e", "", "Only this processor")
	listInstalledCmd.Flags().BoolVar(&installedJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listInstalledCmd)
}

func runListAvailable(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	tools, err := mgr.Store().ListAvailable(cmd.Context(), registry.ListOptions{
		Tool:    availableTool,
		Dynamic: !availableNoDynamic,
		Name:    availableName,
		URL:     availableURL,
	})
	if err != nil {
		return err
	}
	if availableJSON {
		return writeJSON(cmd.OutOrStdout(), tools)
	}
	printResources(cmd.OutOrStdout(), tools, false)
	return nil
}

func runListInstalled(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}
	tools, err := mgr.Store().ListInstalled(cmd.Context(), installedTool)
	if err != nil {
		return err
	}
	if installedJSON {
		return writeJSON(cmd.OutOrStdout(), tools)
	}
	printResources(cmd.OutOrStdout(), tools, true)
	return nil
}
