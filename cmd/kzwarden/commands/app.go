package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/archive"
	"github.com/kzwarden/kzwarden/pkg/config"
	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/fetch"
	"github.com/kzwarden/kzwarden/pkg/formats"
	"github.com/kzwarden/kzwarden/pkg/installer"
	"github.com/kzwarden/kzwarden/pkg/resolver"
	"github.com/kzwarden/kzwarden/pkg/telemetry"
)

// shutdownTimeout bounds flushing spans and metrics at exit.
const shutdownTimeout = 5 * time.Second

// app holds what every command needs for one invocation.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	runID   string
}

// newApp loads the configuration, applies flag and LOG_LEVEL overrides and
// sets up telemetry.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath, buildVersion, os.Getenv)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}
	if configDir != "" {
		cfg.ConfigDir = configDir
	}
	if stagingDir != "" {
		cfg.StagingDir = stagingDir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Telemetry.Logging.Level = level
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Telemetry.Logging.Level))

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	tracer, err := telemetry.NewTracer(cfg.Telemetry.Tracing, "kzwarden", buildVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	logger.Debug().
		Str("root", cfg.RootDir).
		Str("config_dir", cfg.ConfigDir).
		Str("version", buildVersion).
		Msg("Configuration loaded")

	return &app{cfg: cfg, logger: logger, metrics: metrics, tracer: tracer, runID: runID}, nil
}

// adapters returns the format registry.
func (a *app) adapters() *formats.Registry {
	return formats.NewRegistry(a.logger, formats.WithGameInfoMarker(a.cfg.GameInfoMarker))
}

// resolvers returns the origin registry.
func (a *app) resolvers() (*resolver.Registry, error) {
	client := &http.Client{Timeout: a.cfg.HTTP.Timeout}
	token := a.cfg.GitHubToken(os.Getenv)
	if token == "" {
		a.logger.Debug().Str("env", a.cfg.GitHub.TokenEnv).Msg("No GitHub token, requests are unauthenticated")
	}

	gh := resolver.NewGitHubResolver(a.logger, resolver.GitHubOptions{
		APIBase:   a.cfg.GitHub.APIBase,
		Token:     token,
		UserAgent: a.cfg.HTTP.UserAgent,
		Client:    client,
	})
	mms, err := resolver.NewMMSDropResolver(a.logger, resolver.MMSDropOptions{
		BaseURL:   a.cfg.MMSDrop.BaseURL,
		UserAgent: a.cfg.HTTP.UserAgent,
		Client:    client,
	})
	if err != nil {
		return nil, err
	}
	return resolver.NewRegistry(gh, mms), nil
}

// reconciler wires the driver with every collaborator.
func (a *app) reconciler() (*engine.Reconciler, error) {
	resolvers, err := a.resolvers()
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(a.logger, fetch.Options{
		UserAgent: a.cfg.HTTP.UserAgent,
		Client:    &http.Client{Timeout: a.cfg.HTTP.DownloadTimeout},
		Metrics:   a.metrics,
	})
	inst := installer.New(a.logger, fetcher, archive.New(), a.cfg.StagingDir)

	return engine.NewReconciler(a.logger, engine.Options{
		Root:      a.cfg.RootDir,
		Adapters:  a.adapters(),
		Resolvers: resolvers,
		Installer: inst,
		RunID:     a.runID,
		Metrics:   a.metrics,
		Tracer:    a.tracer,
	}), nil
}

// close flushes metrics and spans.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to write metrics")
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
}
