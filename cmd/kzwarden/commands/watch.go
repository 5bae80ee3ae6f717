package commands

import (
	"github.com/spf13/cobra"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

func newWatchCommand() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-apply the config manifest whenever it changes",
		Long: `Apply the config manifest, then keep watching it and apply it again
after every change. Bursts of writes are debounced (watch.debounce in the
config file). Stops on interrupt.`,
		Example: `  # Watch the default config manifest
  kzwarden watch

  # Watch a manifest being edited locally
  kzwarden watch --manifest ./configs.json --root ./cs2`,
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
				path = a.cfg.ConfigsManifestPath()
			}

			ctx := cmd.Context()
			apply := func() {
				report := r.RunConfigs(ctx, path)
				if err := printReports(cmd.OutOrStdout(), report); err != nil {
					a.logger.Warn().Err(err).Msg("Failed to print report")
				}
				if err := a.metrics.WriteTextfile(); err != nil {
					a.logger.Warn().Err(err).Msg("Failed to write metrics")
				}
			}

			apply()
			return manifest.Watch(ctx, a.logger, path, a.cfg.Watch.Debounce, apply)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "config manifest path (default from config)")

	return cmd
}
