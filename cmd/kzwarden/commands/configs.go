package commands

import (
	"github.com/spf13/cobra"
)

func newConfigsCommand() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Apply the config manifest",
		Long: `Apply every entry of the config manifest.

Each entry names a target file, its format (gi, cfg, jsonc, kv3, ini) and
the keys to set. Placeholders of the form {env.NAME} in values are
replaced with environment variables. Files are rewritten atomically and
only if their content changes.`,
		Example: `  # Apply the default config manifest
  kzwarden configs

  # Apply a YAML manifest
  kzwarden configs --manifest ./configs.yaml`,
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
			report := r.RunConfigs(cmd.Context(), path)

			if err := printReports(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return reportsError(report)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "config manifest path (default from config)")

	return cmd
}
