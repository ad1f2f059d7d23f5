package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/ocrd-go/resmgr/internal/branding"
	"github.com/ocrd-go/resmgr/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	logLevel string

	// settings and logger are populated before any subcommand runs.
	settings config.Settings
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` lists, downloads and locates the resources (models, dictionaries,
configuration files) that OCR processors need at runtime.

Resources are looked up in the bundled list and the user list at
$XDG_CONFIG_HOME/ocrd/resources.yml, and installed under the data, system,
cwd or module location of the processor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			s.LogLevel = logLevel
		}
		log, err := newLogger(cmd.ErrOrStderr(), s.LogLevel)
		if err != nil {
			return err
		}
		settings = s
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+branding.EnvVar("LOG_LEVEL"))
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return err
}
