package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/manifest"
)

type validationResult struct {
	Manifest string           `json:"manifest"`
	Error    string           `json:"error,omitempty"`
	Problems []engine.Problem `json:"problems,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check both manifests without applying them",
		Long: `Load and check the config and plugin manifests.

This command checks:
  - Both manifests parse (relaxed JSON or YAML for configs, strict JSON
    for plugins)
  - Required fields are present and depth is not negative
  - Every config format and plugin origin is known
  - Every config target file exists under the installation root

Nothing is downloaded or written.`,
		Example: `  # Validate the default manifests
  kzwarden validate

  # Validate manifests in another directory
  kzwarden validate --config-dir ./server-config --root ./cs2`,
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

			configs := validationResult{Manifest: a.cfg.ConfigsManifestPath()}
			if entries, err := manifest.LoadConfigs(configs.Manifest); err != nil {
				configs.Error = err.Error()
			} else {
				configs.Problems = r.ValidateConfigs(entries)
			}

			plugins := validationResult{Manifest: a.cfg.PluginsManifestPath()}
			if m, err := manifest.LoadPlugins(plugins.Manifest); err != nil {
				plugins.Error = err.Error()
			} else {
				plugins.Problems = r.ValidatePlugins(m.Plugins)
			}

			results := []validationResult{configs, plugins}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			}

			count := 0
			for _, res := range results {
				if res.Error != "" {
					count++
				}
				count += len(res.Problems)
				if jsonOutput {
					continue
				}
				switch {
				case res.Error != "":
					fmt.Fprintf(out, "%s: %s\n", res.Manifest, res.Error)
				case len(res.Problems) == 0:
					fmt.Fprintf(out, "%s: ok\n", res.Manifest)
				default:
					fmt.Fprintf(out, "%s: %d problem(s)\n", res.Manifest, len(res.Problems))
					for _, p := range res.Problems {
						fmt.Fprintf(out, "  %s\n", p)
					}
				}
			}

			if count > 0 {
				return fmt.Errorf("validation found %d problem(s)", count)
			}
			return nil
		},
	}

	return cmd
}
