package commands

import (
	"github.com/spf13/cobra"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

func newApplyCommand() *cobra.Command {
	var skipPlugins, skipConfigs bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile plugins, then configs",
		Long: `Reconcile both manifests once.

This command:
  - Resolves the latest release of every plugin and installs those whose
    tag changed, then records the new tags in the plugin manifest
  - Applies every config manifest entry through its format adapter

Plugins go first so that config files shipped by a plugin exist before
they are patched. A failed item is reported and left at its previous
state; the other items are still processed.`,
		Example: `  # Reconcile with the default manifests
  kzwarden apply

  # Use another installation root
  kzwarden apply --root /srv/cs2 --config-dir ./server-config

  # Only patch configs
  kzwarden apply --skip-plugins`,
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

			var reports []*engine.Report
			if !skipPlugins {
				reports = append(reports, r.RunPlugins(cmd.Context(), a.cfg.PluginsManifestPath(), false))
			}
			if !skipConfigs {
				reports = append(reports, r.RunConfigs(cmd.Context(), a.cfg.ConfigsManifestPath()))
			}

			if err := printReports(cmd.OutOrStdout(), reports...); err != nil {
				return err
			}
			return reportsError(reports...)
		},
	}

	cmd.Flags().BoolVar(&skipPlugins, "skip-plugins", false, "do not reconcile plugins")
	cmd.Flags().BoolVar(&skipConfigs, "skip-configs", false, "do not reconcile configs")

	return cmd
}
