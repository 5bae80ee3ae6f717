package formats

import (
	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// KV3Adapter replaces quoted values of `"key" "value"` lines in place.
// Nested entry mappings are flattened: each nested key is looked up with
// the same rule anywhere in the document.
type KV3Adapter struct {
	logger zerolog.Logger
}

// NewKV3Adapter creates a kv3 adapter.
func NewKV3Adapter(logger zerolog.Logger) *KV3Adapter {
	return &KV3Adapter{logger: logger}
}

// Format implements engine.Adapter.
func (a *KV3Adapter) Format() string { return FormatKV3 }

// Apply rewrites the first matching line of every entry key. Keys with no
// matching line leave the document unchanged.
func (a *KV3Adapter) Apply(path string, entries *manifest.Object) (bool, error) {
	before, err := readTarget(path, FormatKV3)
	if err != nil {
		return false, err
	}
	after := a.replaceAll(path, before, entries)
	return writeIfChanged(path, FormatKV3, before, after)
}

func (a *KV3Adapter) replaceAll(path, content string, entries *manifest.Object) string {
	for _, f := range entries.Fields {
		if nested, ok := f.Value.(*manifest.Object); ok {
			content = a.replaceAll(path, content, nested)
			continue
		}
		var matched bool
		content, matched = replaceFirst(content, quotedPairRule(f.Key, manifest.FormatScalar(f.Value)))
		if !matched {
			a.logger.Debug().Str("file", path).Str("key", f.Key).Msg("No matching key/value line")
		}
	}
	return content
}
