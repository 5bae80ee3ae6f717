// Package formats implements the config file adapters. Each adapter edits
// only the keys it is given and leaves the rest of the file alone where the
// format allows it. The set of formats is fixed.
package formats

import (
	"errors"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/atomicfile"
	"github.com/kzwarden/kzwarden/pkg/engine"
)

// Format tags.
const (
	FormatGameInfo = "gi"
	FormatCfg      = "cfg"
	FormatJSONC    = "jsonc"
	FormatKV3      = "kv3"
	FormatINI      = "ini"
)

// Registry holds one adapter per supported format.
type Registry struct {
	adapters map[string]engine.Adapter
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	gameInfoMarker string
}

// WithGameInfoMarker sets the line marker the gi adapter inserts after.
func WithGameInfoMarker(marker string) Option {
	return func(o *options) {
		if marker != "" {
			o.gameInfoMarker = marker
		}
	}
}

// NewRegistry returns a registry with every supported adapter.
func NewRegistry(logger zerolog.Logger, opts ...Option) *Registry {
	o := options{gameInfoMarker: DefaultGameInfoMarker}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With().Str("component", "formats").Logger()
	r := &Registry{adapters: make(map[string]engine.Adapter)}
	for _, a := range []engine.Adapter{
		NewGameInfoAdapter(logger, o.gameInfoMarker),
		NewCfgAdapter(logger),
		NewJSONCAdapter(logger),
		NewKV3Adapter(logger),
		NewINIAdapter(logger),
	} {
		r.adapters[a.Format()] = a
	}
	return r
}

// Lookup returns the adapter for format.
func (r *Registry) Lookup(format string) (engine.Adapter, bool) {
	a, ok := r.adapters[format]
	return a, ok
}

// Formats returns the supported format tags, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.adapters))
	for f := range r.adapters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func readTarget(path, format string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", engine.NewNotFoundError("target file not found", err).
				WithResource(path).WithOperation(format)
		}
		return "", engine.NewFilesystemError("failed to read target file", err).
			WithResource(path).WithOperation(format)
	}
	return string(data), nil
}

// writeIfChanged replaces the file only when the content differs.
func writeIfChanged(path, format, before, after string) (bool, error) {
	if before == after {
		return false, nil
	}
	if err := atomicfile.WriteFile(path, []byte(after), 0o644); err != nil {
		return false, engine.NewFilesystemError("failed to write target file", err).
			WithResource(path).WithOperation(format)
	}
	return true, nil
}
