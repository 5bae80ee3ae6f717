package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kzwarden/kzwarden/pkg/telemetry"
)

// Defaults for a containerised CS2 server.
const (
	DefaultRootDir         = "/home/steam/cs2"
	DefaultConfigDir       = "/server-config"
	DefaultConfigsManifest = "configs.json"
	DefaultPluginsManifest = "plugins.json"
	DefaultGitHubAPI       = "https://api.github.com"
	DefaultTokenEnv        = "GITHUB_APIKEY"
	DefaultMMSDropURL      = "https://mms.alliedmods.net/mmsdrop/2.0/"
	DefaultGameInfoMarker  = "Game_LowViolence"
)

// Environment variables that override file settings.
const (
	EnvRoot       = "KZWARDEN_ROOT"
	EnvConfigDir  = "KZWARDEN_CONFIG_DIR"
	EnvStagingDir = "KZWARDEN_STAGING_DIR"
	EnvGitHubAPI  = "KZWARDEN_GITHUB_API"
	EnvMMSDropURL = "KZWARDEN_MMSDROP_URL"
)

var validate = validator.New()

// Default returns the built-in configuration. version goes into the
// default user agent.
func Default(version string) *Config {
	return &Config{
		RootDir:         DefaultRootDir,
		ConfigDir:       DefaultConfigDir,
		ConfigsManifest: DefaultConfigsManifest,
		PluginsManifest: DefaultPluginsManifest,
		GameInfoMarker:  DefaultGameInfoMarker,
		GitHub: GitHubConfig{
			APIBase:  DefaultGitHubAPI,
			TokenEnv: DefaultTokenEnv,
		},
		MMSDrop: MMSDropConfig{
			BaseURL: DefaultMMSDropURL,
		},
		HTTP: HTTPConfig{
			UserAgent:       "kzwarden/" + version,
			Timeout:         30 * time.Second,
			DownloadTimeout: 10 * time.Minute,
		},
		Launch: LaunchConfig{
			Symlinks: []Symlink{
				{Path: "/home/steam/.steam/sdk64", Target: "/opt/steamcmd/linux64"},
			},
			Update: []string{
				"steamcmd.sh", "+force_install_dir", "{root}",
				"+login", "anonymous", "+app_update", "730", "+quit",
			},
			Start: []string{
				"{root}/game/cs2.sh", "--graphics-provider", "", "--",
				"-dedicated", "-port", "{env.PORT}", "-maxplayers", "32",
				"+sv_setsteamaccount", "{env.GSLT}",
				"+exec", "cs2kz.cfg", "+map", "de_dust2", "+host_workshop_map", "3121168339",
			},
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and environment overrides read through lookup. The
// result is not validated; callers apply flag overrides and then call
// Validate.
func Load(path, version string, lookup func(string) string) (*Config, error) {
	cfg := Default(version)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.Getenv
	}
	cfg.applyEnv(lookup)
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) string) {
	overrides := []struct {
		env   string
		field *string
	}{
		{EnvRoot, &c.RootDir},
		{EnvConfigDir, &c.ConfigDir},
		{EnvStagingDir, &c.StagingDir},
		{EnvGitHubAPI, &c.GitHub.APIBase},
		{EnvMMSDropURL, &c.MMSDrop.BaseURL},
	}
	for _, o := range overrides {
		if v := lookup(o.env); v != "" {
			*o.field = v
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// ConfigsManifestPath returns the path of the config manifest.
func (c *Config) ConfigsManifestPath() string {
	return c.inConfigDir(c.ConfigsManifest)
}

// PluginsManifestPath returns the path of the plugin manifest.
func (c *Config) PluginsManifestPath() string {
	return c.inConfigDir(c.PluginsManifest)
}

func (c *Config) inConfigDir(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ConfigDir, name)
}

// GitHubToken returns the GitHub token from the configured environment
// variable. An empty result means requests are unauthenticated.
func (c *Config) GitHubToken(lookup func(string) string) string {
	if c.GitHub.TokenEnv == "" {
		return ""
	}
	if lookup == nil {
		lookup = os.Getenv
	}
	return lookup(c.GitHub.TokenEnv)
}
