package cli

import (
	"fmt"

	"github.com/ocrd-go/resmgr/internal/discovery"
	"github.com/ocrd-go/resmgr/internal/doctor"
	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check resource locations, the user list and installed processors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &doctor.Checker{
			Settings: settings,
			Scanner:  discovery.NewScanner(discovery.NewExecIntrospector(logger), logger),
			Fix:      doctorFix,
		}
		problems, err := c.Run(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if problems > 0 {
			return fmt.Errorf("%d problem(s) found", problems)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Create missing directories and remove leftover temporary files")
	rootCmd.AddCommand(doctorCmd)
}
