package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve EXECUTABLE NAME",
	Short: "Print the path a processor would load a resource from",
	Long: `Search the locations a processor loads resources from, in order, and
print the first path holding NAME. Absolute paths and paths relative to the
working directory are returned as they are when they exist.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}
		path, err := mgr.Resolve(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
