package config

import (
	"time"

	"github.com/kzwarden/kzwarden/pkg/telemetry"
)

// Config is the kzwarden tool configuration.
type Config struct {
	// RootDir is the installation root. Manifest paths starting with
	// "root/" are resolved against it.
	RootDir string `yaml:"root_dir" validate:"required"`

	// ConfigDir holds the manifests.
	ConfigDir string `yaml:"config_dir" validate:"required"`

	// ConfigsManifest is the config manifest, relative to ConfigDir unless
	// absolute.
	ConfigsManifest string `yaml:"configs_manifest" validate:"required"`

	// PluginsManifest is the plugin manifest, relative to ConfigDir unless
	// absolute.
	PluginsManifest string `yaml:"plugins_manifest" validate:"required"`

	// StagingDir holds downloads and scratch extractions. Empty means the
	// system temp dir.
	StagingDir string `yaml:"staging_dir"`

	// GameInfoMarker is the line marker the gi adapter inserts after.
	GameInfoMarker string `yaml:"gameinfo_marker" validate:"required"`

	// GitHub configures the github origin.
	GitHub GitHubConfig `yaml:"github"`

	// MMSDrop configures the mmsdrop origin.
	MMSDrop MMSDropConfig `yaml:"mmsdrop"`

	// HTTP configures outbound requests.
	HTTP HTTPConfig `yaml:"http"`

	// Launch configures the run command.
	Launch LaunchConfig `yaml:"launch"`

	// Watch configures the watch command.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// GitHubConfig configures the GitHub releases API.
type GitHubConfig struct {
	// APIBase is the API root URL.
	APIBase string `yaml:"api_base" validate:"required,url"`

	// TokenEnv names the environment variable holding an optional bearer
	// token.
	TokenEnv string `yaml:"token_env"`
}

// MMSDropConfig configures the Metamod:Source snapshot drop.
type MMSDropConfig struct {
	// BaseURL is the directory containing the marker files.
	BaseURL string `yaml:"base_url" validate:"required,url"`
}

// HTTPConfig configures outbound HTTP.
type HTTPConfig struct {
	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" validate:"required"`

	// Timeout bounds a single API request.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// DownloadTimeout bounds a single artifact download.
	DownloadTimeout time.Duration `yaml:"download_timeout" validate:"gt=0"`
}

// LaunchConfig configures the steps around reconciliation in the run
// command. Command arguments may contain {root} and {env.NAME}
// placeholders.
type LaunchConfig struct {
	// Symlinks are created before anything else runs.
	Symlinks []Symlink `yaml:"symlinks" validate:"dive"`

	// Update is the application update command. Empty skips the update.
	Update []string `yaml:"update"`

	// Start is the application start command. Empty means run exits after
	// reconciliation.
	Start []string `yaml:"start"`

	// SkipPlugins disables plugin reconciliation in the run command.
	SkipPlugins bool `yaml:"skip_plugins"`

	// SkipConfigs disables config reconciliation in the run command.
	SkipConfigs bool `yaml:"skip_configs"`
}

// Symlink is a link to create when its parent directory does not exist yet.
type Symlink struct {
	// Path is where the link is created.
	Path string `yaml:"path" validate:"required"`

	// Target is what the link points to.
	Target string `yaml:"target" validate:"required"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// Debounce is how long to wait after the last change before applying.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}
