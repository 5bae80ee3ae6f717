package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kzwarden/kzwarden/pkg/launcher"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Container entrypoint: update, reconcile, start",
		Long: `Run the full launch sequence.

Steps, in order:
  - Create the configured symlinks whose parent directory is missing
  - Run the update command (steamcmd by default)
  - Reconcile plugins, then configs
  - Start the server and wait for it to exit

Failures before the start step are logged and never prevent the server
from starting. Command arguments may use {root} and {env.NAME}
placeholders. The exit status is the server's.`,
		Example: `  # Entrypoint of the server container
  kzwarden run

  # Use a config file with launch.skip_plugins set
  kzwarden run --config /etc/kzwarden.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			l := launcher.New(a.logger, launcher.Options{
				Root:   a.cfg.RootDir,
				Launch: a.cfg.Launch,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})

			return l.Run(cmd.Context(), func(ctx context.Context) {
				r, err := a.reconciler()
				if err != nil {
					a.logger.Error().Err(err).Msg("Failed to set up reconciliation, skipping")
					return
				}
				if !a.cfg.Launch.SkipPlugins {
					report := r.RunPlugins(ctx, a.cfg.PluginsManifestPath(), false)
					a.logger.Info().Msg(report.Summary())
				}
				if !a.cfg.Launch.SkipConfigs {
					report := r.RunConfigs(ctx, a.cfg.ConfigsManifestPath())
					a.logger.Info().Msg(report.Summary())
				}
				if err := a.metrics.WriteTextfile(); err != nil {
					a.logger.Warn().Err(err).Msg("Failed to write metrics")
				}
			})
		},
	}

	return cmd
}
