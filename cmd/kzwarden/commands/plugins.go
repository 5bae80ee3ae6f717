package commands

import (
	"github.com/spf13/cobra"
)

func newPluginsCommand() *cobra.Command {
	var (
		manifestPath string
		check        bool
	)

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Update plugins to their latest releases",
		Long: `Bring every plugin in the plugin manifest to its latest release.

For each record the latest release is looked up on its origin (github or
mmsdrop). When the tag differs from the recorded one, the artifact is
downloaded, unpacked, stripped of wrapping directories and merged into
the destination. The new tag is recorded only after the installation
succeeded, and the manifest is rewritten only if a tag changed.

With --check, releases are looked up and pending updates reported, but
nothing is installed or written.`,
		Example: `  # Update plugins
  kzwarden plugins

  # Show which plugins have updates
  kzwarden plugins --check

  # Machine-readable report
  kzwarden plugins --check --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.reconciler()
			if err != nil {
				return err
			}

			path := manifestPath
			if path == "" {
				path = a.cfg.PluginsManifestPath()
			}
			report := r.RunPlugins(cmd.Context(), path, check)

			if err := printReports(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return reportsError(report)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "plugin manifest path (default from config)")
	cmd.Flags().BoolVar(&check, "check", false, "report available updates without installing")

	return cmd
}
