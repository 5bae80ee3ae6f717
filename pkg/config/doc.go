// Package config loads the kzwarden tool configuration.
//
// Settings are layered, lowest precedence first: built-in defaults, an
// optional YAML file, KZWARDEN_* environment variables, and finally
// command-line flags applied by the caller. The merged configuration is
// checked with Validate before use.
//
// # Usage Example
//
//	cfg, err := config.Load("/etc/kzwarden.yaml", version, os.Getenv)
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	plugins := cfg.PluginsManifestPath()
package config
