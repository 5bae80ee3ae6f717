package formats

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// CfgAdapter owns its file completely: the entries become the whole file,
// one `key "value"` line each.
type CfgAdapter struct {
	logger zerolog.Logger
}

// NewCfgAdapter creates a cfg adapter.
func NewCfgAdapter(logger zerolog.Logger) *CfgAdapter {
	return &CfgAdapter{logger: logger}
}

// Format implements engine.Adapter.
func (a *CfgAdapter) Format() string { return FormatCfg }

// Apply replaces the file with the rendered entries.
func (a *CfgAdapter) Apply(path string, entries *manifest.Object) (bool, error) {
	before, err := readTarget(path, FormatCfg)
	if err != nil {
		return false, err
	}

	var b strings.Builder
	for _, f := range entries.Fields {
		b.WriteString(f.Key)
		b.WriteString(` "`)
		b.WriteString(manifest.FormatScalar(f.Value))
		b.WriteString("\"\n")
	}

	return writeIfChanged(path, FormatCfg, before, b.String())
}
