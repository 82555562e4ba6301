package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sharecrawl",
	Short: "Sharecrawl - network drive and SharePoint document enumerator",
	Long: `Sharecrawl walks SMB network drives and SharePoint Server site collections
and emits one document per file, folder, site, list and list item, with
access control lists resolved from native permissions and file content
fetched on demand.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sharecrawl.yaml", "Path to the configuration file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(accessSyncCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger: production JSON on stderr, a
// development console logger under --verbose, errors only under --quiet.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	return cfg.Build()
}
