package cli

import (
	"fmt"

	"github.com/ocrd-go/resmgr/internal/deploy"
	"github.com/spf13/cobra"
)

func init() {
	deployCmd.AddCommand(deployValidateCmd)
	rootCmd.AddCommand(deployCmd)
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Work with processing deployment configs",
}

var deployValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a deployment config and summarize its hosts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deploy.ParseConfigFile(args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s is valid\n", okMark.Sprint("✓"), args[0])
		fmt.Fprintf(w, "Queue:    %s:%d\n", cfg.Queue.Address, cfg.Queue.Port)
		fmt.Fprintf(w, "Database: %s:%d\n\n", cfg.Database.Address, cfg.Database.Port)

		tw := newTable(w)
		fmt.Fprintln(tw, "HOST\tPROCESSOR\tMODE\tINSTANCES")
		for _, h := range cfg.Hosts {
			for _, t := range h.Tools {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", h.Address, t.Name, t.Mode, t.Instances)
			}
		}
		return tw.Flush()
	},
}
