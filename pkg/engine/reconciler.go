package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/kzwarden/kzwarden/pkg/envsubst"
	"github.com/kzwarden/kzwarden/pkg/manifest"
	"github.com/kzwarden/kzwarden/pkg/telemetry"
)

// Phase names used in reports, logs and metrics.
const (
	PhaseConfigs = "configs"
	PhasePlugins = "plugins"
	PhaseCheck   = "check"
)

// Options configures a Reconciler.
type Options struct {
	// Root is the installation root manifest paths are resolved against.
	Root string

	// Adapters maps config formats to adapters.
	Adapters AdapterRegistry

	// Resolvers maps plugin origins to resolvers.
	Resolvers ResolverRegistry

	// Installer installs plugin artifacts.
	Installer Installer

	// Lookup resolves {env.NAME} placeholders. Defaults to os.Getenv.
	Lookup envsubst.LookupFunc

	// RunID is attached to reports, logs and spans.
	RunID string

	// Metrics and Tracer may be nil.
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
}

// Reconciler is the reconciliation driver. It processes manifest items
// sequentially in manifest order. Its Run and Apply methods never return
// errors or panic; outcomes are reported through *Report.
type Reconciler struct {
	root      string
	adapters  AdapterRegistry
	resolvers ResolverRegistry
	installer Installer
	lookup    envsubst.LookupFunc
	runID     string
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	logger    zerolog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(logger zerolog.Logger, opts Options) *Reconciler {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = envsubst.Getenv
	}
	return &Reconciler{
		root:      opts.Root,
		adapters:  opts.Adapters,
		resolvers: opts.Resolvers,
		installer: opts.Installer,
		lookup:    lookup,
		runID:     opts.RunID,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    logger.With().Str("component", "reconciler").Str("run_id", opts.RunID).Logger(),
	}
}

// RunConfigs loads the config manifest at path and applies it.
func (r *Reconciler) RunConfigs(ctx context.Context, path string) *Report {
	entries, err := manifest.LoadConfigs(path)
	if err != nil {
		return r.failedPhase(PhaseConfigs, path, err)
	}
	return r.ApplyConfigs(ctx, entries)
}

// ApplyConfigs patches each entry's target file through its adapter.
func (r *Reconciler) ApplyConfigs(ctx context.Context, entries []manifest.ConfigEntry) *Report {
	report := r.newReport(PhaseConfigs)
	ctx, span := r.tracer.StartPhaseSpan(ctx, PhaseConfigs, r.runID)
	defer span.End()

	for i := range entries {
		if err := ctx.Err(); err != nil {
			report.Error = "run cancelled: " + err.Error()
			break
		}
		entry := &entries[i]
		report.Items = append(report.Items, r.configItem(ctx, entry))
	}

	r.finishPhase(report, span)
	return report
}

func (r *Reconciler) configItem(ctx context.Context, entry *manifest.ConfigEntry) ItemResult {
	start := time.Now()
	item := ItemResult{Kind: KindConfig, Name: entry.File, Format: entry.Format}

	_, span := r.tracer.StartItemSpan(ctx, KindConfig, entry.File)
	defer span.End()

	var changed bool
	err := guard(func() error {
		var err error
		changed, err = r.applyConfig(entry)
		return err
	})

	switch {
	case err != nil:
		r.fail(&item, span, err)
	case changed:
		item.Status = ItemApplied
		r.logger.Info().Str("file", entry.File).Str("format", entry.Format).Msg("Config applied")
	default:
		item.Status = ItemUnchanged
		r.logger.Info().Str("file", entry.File).Str("format", entry.Format).Msg("Config already up to date")
	}

	item.Duration = time.Since(start)
	span.SetAttributes(telemetry.AttrResult.String(string(item.Status)))
	r.metrics.RecordConfigEntry(entry.Format, string(item.Status))
	return item
}

func (r *Reconciler) applyConfig(entry *manifest.ConfigEntry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, NewInvalidError("invalid config entry", err).WithResource(entry.File)
	}

	path := manifest.ResolvePath(r.root, entry.File)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, NewNotFoundError("target file does not exist", err).WithResource(path)
		}
		return false, NewFilesystemError("failed to stat target file", err).WithResource(path)
	}

	adapter, ok := r.adapters.Lookup(entry.Format)
	if !ok {
		return false, NewUnknownKindError(fmt.Sprintf("unknown config format %q", entry.Format), nil).
			WithResource(path)
	}

	return adapter.Apply(path, envsubst.Object(entry.Entries, r.lookup))
}

// RunPlugins loads the plugin manifest at path and reconciles it. With
// check set, nothing is installed or persisted.
func (r *Reconciler) RunPlugins(ctx context.Context, path string, check bool) *Report {
	phase := PhasePlugins
	if check {
		phase = PhaseCheck
	}
	m, err := manifest.LoadPlugins(path)
	if err != nil {
		return r.failedPhase(phase, path, err)
	}
	return r.ReconcilePlugins(ctx, m, check)
}

// ReconcilePlugins brings each plugin to its latest release. A record's tag
// changes only after its installation succeeded, and the manifest is saved
// only if at least one tag changed.
func (r *Reconciler) ReconcilePlugins(ctx context.Context, m *manifest.PluginManifest, check bool) *Report {
	phase := PhasePlugins
	if check {
		phase = PhaseCheck
	}
	report := r.newReport(phase)
	ctx, span := r.tracer.StartPhaseSpan(ctx, phase, r.runID)
	defer span.End()

	dirty := false
	for i := range m.Plugins {
		if err := ctx.Err(); err != nil {
			report.Error = "run cancelled: " + err.Error()
			break
		}
		item := r.pluginItem(ctx, &m.Plugins[i], check)
		if item.Status == ItemUpdated {
			dirty = true
		}
		report.Items = append(report.Items, item)
	}

	if dirty && !check {
		if err := m.Save(); err != nil {
			report.Error = err.Error()
			r.logger.Error().Err(err).Str("path", m.Path).Msg("Failed to persist plugin manifest")
		} else {
			report.Persisted = true
			r.logger.Info().Str("path", m.Path).Msg("Plugin manifest updated")
		}
	}

	r.finishPhase(report, span)
	return report
}

func (r *Reconciler) pluginItem(ctx context.Context, record *manifest.PluginRecord, check bool) ItemResult {
	start := time.Now()
	origin := record.OriginOrDefault()
	item := ItemResult{Kind: KindPlugin, Name: record.Name, Format: origin, PreviousTag: record.Tag}

	ctx, span := r.tracer.StartItemSpan(ctx, KindPlugin, record.Name)
	defer span.End()

	var status ItemStatus
	err := guard(func() error {
		var err error
		status, item.Tag, err = r.reconcilePlugin(ctx, record, origin, check)
		return err
	})

	if err != nil {
		r.fail(&item, span, err)
	} else {
		item.Status = status
		ev := r.logger.Info().Str("plugin", record.Name).Str("tag", item.Tag)
		switch status {
		case ItemUpToDate:
			ev.Msg("Plugin up to date")
		case ItemPending:
			ev.Str("installed", item.PreviousTag).Msg("Plugin update available")
		default:
			ev.Str("previous", item.PreviousTag).Msg("Plugin updated")
		}
	}

	item.Duration = time.Since(start)
	span.SetAttributes(telemetry.AttrResult.String(string(item.Status)))
	r.metrics.RecordPluginCheck(origin, string(item.Status))
	return item
}

func (r *Reconciler) reconcilePlugin(ctx context.Context, record *manifest.PluginRecord, origin string, check bool) (ItemStatus, string, error) {
	if err := record.Validate(); err != nil {
		return "", "", NewInvalidError("invalid plugin record", err).WithResource(record.Name)
	}

	resolver, ok := r.resolvers.Lookup(origin)
	if !ok {
		return "", "", NewUnknownKindError(fmt.Sprintf("unknown plugin origin %q", origin), nil).
			WithResource(record.Name)
	}

	release, err := resolver.Resolve(ctx, record)
	if err != nil {
		return "", "", err
	}
	if release.Tag == record.Tag {
		return ItemUpToDate, release.Tag, nil
	}
	if check {
		return ItemPending, release.Tag, nil
	}

	dest := manifest.ResolvePath(r.root, record.Destination)
	if err := r.installer.Install(ctx, release.URL, dest, record.Depth); err != nil {
		return "", release.Tag, err
	}
	record.Tag = release.Tag
	return ItemUpdated, release.Tag, nil
}

func (r *Reconciler) newReport(phase string) *Report {
	return &Report{RunID: r.runID, Phase: phase, StartedAt: time.Now()}
}

func (r *Reconciler) failedPhase(phase, path string, err error) *Report {
	report := r.newReport(phase)
	report.Error = err.Error()
	r.logger.Error().Err(err).Str("phase", phase).Str("path", path).Msg("Failed to load manifest")
	report.finish()
	r.metrics.ObserveRun(phase, report.Duration)
	return report
}

func (r *Reconciler) finishPhase(report *Report, span trace.Span) {
	report.finish()
	r.metrics.ObserveRun(report.Phase, report.Duration)
	span.SetAttributes(telemetry.AttrResult.String(string(report.Status)))
	if report.Status == RunStatusSucceeded {
		telemetry.RecordSuccess(span)
	} else if report.Error != "" {
		telemetry.RecordError(span, errors.New(report.Error))
	}
	r.logger.Info().
		Str("phase", report.Phase).
		Str("status", string(report.Status)).
		Int("items", len(report.Items)).
		Int("failed", len(report.Failures())).
		Dur("duration", report.Duration).
		Msg("Phase complete")
}

func (r *Reconciler) fail(item *ItemResult, span trace.Span, err error) {
	item.Status = ItemFailed
	item.Error = err.Error()
	item.ErrorClass = ClassOf(err)
	span.SetAttributes(telemetry.AttrErrorClass.String(string(item.ErrorClass)))
	telemetry.RecordError(span, err)
	r.logger.Error().
		Err(err).
		Str("kind", item.Kind).
		Str("item", item.Name).
		Str("class", string(item.ErrorClass)).
		Bool("retryable", IsRetryable(err)).
		Msg("Item failed, left at previous state")
}

// guard runs fn, converting a panic into an internal error.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = NewInternalError(fmt.Sprintf("panic: %v", p), nil)
		}
	}()
	return fn()
}
