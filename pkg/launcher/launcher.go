// Package launcher runs the steps around reconciliation when kzwarden acts
// as a container entrypoint: link setup, the application update, and the
// application itself.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/config"
	"github.com/kzwarden/kzwarden/pkg/envsubst"
)

// RootPlaceholder in a command argument is replaced by the installation root.
const RootPlaceholder = "{root}"

// StopTimeout is how long the started application has to exit after
// SIGTERM before it is killed.
const StopTimeout = 30 * time.Second

// Options configures a Launcher.
type Options struct {
	// Root is the installation root.
	Root string

	// Launch holds the symlinks and commands.
	Launch config.LaunchConfig

	// Lookup resolves {env.NAME} placeholders. Defaults to os.Getenv.
	Lookup envsubst.LookupFunc

	// Stdout and Stderr receive command output. Default to the process's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes a finished command.
type Result struct {
	// ExitCode is the command's exit status.
	ExitCode int

	// Duration is how long the command ran.
	Duration time.Duration
}

// Launcher runs the launch sequence.
type Launcher struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a Launcher.
func New(logger zerolog.Logger, opts Options) *Launcher {
	if opts.Lookup == nil {
		opts.Lookup = envsubst.Getenv
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Launcher{
		opts:   opts,
		logger: logger.With().Str("component", "launcher").Logger(),
	}
}

// Run performs the launch sequence: symlinks, update, reconcile, start.
// Symlink and update failures are logged and do not stop the sequence.
// The returned error is the start command's.
func (l *Launcher) Run(ctx context.Context, reconcile func(context.Context)) error {
	if err := l.EnsureSymlinks(); err != nil {
		l.logger.Error().Err(err).Msg("Symlink setup failed, continuing")
	}

	if _, err := l.Update(ctx); err != nil {
		l.logger.Error().Err(err).Msg("Update failed, continuing")
	}

	if reconcile != nil {
		reconcile(ctx)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := l.Start(ctx)
	return err
}

// EnsureSymlinks creates each configured link whose parent directory does
// not exist yet. Links under an existing directory are left alone.
func (l *Launcher) EnsureSymlinks() error {
	var errs []error
	for _, link := range l.opts.Launch.Symlinks {
		parent := filepath.Dir(link.Path)
		if _, err := os.Stat(parent); err == nil {
			l.logger.Debug().Str("path", link.Path).Msg("Link parent exists, skipping")
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to stat %s: %w", parent, err))
			continue
		}

		if err := os.MkdirAll(parent, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("failed to create %s: %w", parent, err))
			continue
		}
		if err := os.Symlink(link.Target, link.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to link %s: %w", link.Path, err))
			continue
		}
		l.logger.Info().Str("path", link.Path).Str("target", link.Target).Msg("Created symlink")
	}
	return errors.Join(errs...)
}

// Update runs the update command. An empty command is skipped.
func (l *Launcher) Update(ctx context.Context) (*Result, error) {
	if len(l.opts.Launch.Update) == 0 {
		l.logger.Debug().Msg("No update command configured")
		return nil, nil
	}
	l.logger.Info().Msg("Updating application")
	return l.run(ctx, "update", l.opts.Launch.Update)
}

// Start runs the start command in the foreground until it exits or ctx is
// cancelled. An empty command is skipped.
func (l *Launcher) Start(ctx context.Context) (*Result, error) {
	if len(l.opts.Launch.Start) == 0 {
		l.logger.Info().Msg("No start command configured")
		return nil, nil
	}
	l.logger.Info().Msg("Starting application")
	return l.run(ctx, "start", l.opts.Launch.Start)
}

// Expand substitutes {root} and {env.NAME} placeholders in args.
func (l *Launcher) Expand(args []string) []string {
	rooted := make([]string, len(args))
	for i, a := range args {
		rooted[i] = strings.ReplaceAll(a, RootPlaceholder, l.opts.Root)
	}
	return envsubst.Strings(rooted, l.opts.Lookup)
}

func (l *Launcher) run(ctx context.Context, step string, argv []string) (*Result, error) {
	args := l.Expand(argv)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = l.opts.Stdout
	cmd.Stderr = l.opts.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = StopTimeout

	start := time.Now()
	err := cmd.Run()
	result := &Result{Duration: time.Since(start)}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			l.logger.Warn().
				Str("step", step).
				Int("exit_code", result.ExitCode).
				Dur("duration", result.Duration).
				Msg("Command exited with an error")
			return result, fmt.Errorf("%s command exited with code %d: %w", step, result.ExitCode, err)
		}
		return nil, fmt.Errorf("failed to execute %s command: %w", step, err)
	}

	l.logger.Info().Str("step", step).Dur("duration", result.Duration).Msg("Command finished")
	return result, nil
}
