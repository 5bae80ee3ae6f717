package formats

import (
	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// INIAdapter replaces the value part of `key = value` lines.
type INIAdapter struct {
	logger zerolog.Logger
}

// NewINIAdapter creates an ini adapter.
func NewINIAdapter(logger zerolog.Logger) *INIAdapter {
	return &INIAdapter{logger: logger}
}

// Format implements engine.Adapter.
func (a *INIAdapter) Format() string { return FormatINI }

// Apply rewrites the first `key = ...` line of every entry key. Keys with
// no matching line leave the document unchanged.
func (a *INIAdapter) Apply(path string, entries *manifest.Object) (bool, error) {
	before, err := readTarget(path, FormatINI)
	if err != nil {
		return false, err
	}

	after := before
	for _, f := range entries.Fields {
		if f.Key == "" {
			continue
		}
		var matched bool
		after, matched = replaceFirst(after, assignmentRule(f.Key, formatINIValue(f.Value)))
		if !matched {
			a.logger.Debug().Str("file", path).Str("key", f.Key).Msg("No matching assignment line")
		}
	}

	return writeIfChanged(path, FormatINI, before, after)
}

// formatINIValue quotes strings and renders everything else in its
// natural form.
func formatINIValue(v any) string {
	if s, ok := v.(string); ok {
		return `"` + s + `"`
	}
	return manifest.FormatScalar(v)
}
