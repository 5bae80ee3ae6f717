package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	rootDir    string
	configDir  string
	stagingDir string

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kzwarden",
		Short: "kzwarden - declarative game server config and plugin reconciler",
		Long: `kzwarden drives a game server installation toward the state described by
two manifests, and is safe to run on every container start.

Features:
  - Patches gi, cfg, jsonc, kv3 and ini files in place, key by key
  - Keeps plugins at their latest GitHub or mmsdrop release
  - Writes files atomically and only when they change
  - Records installed plugin versions back into the plugin manifest
  - Acts as the container entrypoint (update, reconcile, start)`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "installation root (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "manifest directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&stagingDir, "staging-dir", "", "download staging directory (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newConfigsCommand())
	rootCmd.AddCommand(newPluginsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newRunCommand())

	return rootCmd
}
