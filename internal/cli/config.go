package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/spf13/cobra"
)

var configKeys = []string{
	config.KeyDataHome,
	config.KeyConfigHome,
	config.KeySystemDir,
	config.KeyCwd,
	config.KeyDownloadTimeout,
	config.KeyLogLevel,
	config.KeyListenAddress,
}

func knownKey(key string) error {
	if slices.Contains(configKeys, key) {
		return nil
	}
	return fmt.Errorf("unknown config key %q (want one of %s)", key, strings.Join(configKeys, ", "))
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change persistent settings",
		Long: `Settings live in resmgr.yaml beside the user resource list.
Environment variables take precedence over the file.

Keys: ` + strings.Join(configKeys, ", "),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := knownKey(args[0]); err != nil {
				return err
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("storing %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", okMark.Sprint("✓"), args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := knownKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.Get(args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show where settings, the user list and resources are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintf(w, "settings\t%s\n", config.FilePath())
			fmt.Fprintf(w, "user list\t%s\n", settings.UserListPath())
			fmt.Fprintf(w, "resources\t%s\n", settings.DataResourcesDir())
			return w.Flush()
		},
	})
	return cmd
}

func init() {
	rootCmd.AddCommand(newConfigCmd())
}
