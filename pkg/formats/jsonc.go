package formats

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/manifest"
)

var prettyOptions = &pretty.Options{Indent: "    ", Width: 80}

// JSONCAdapter replaces top-level values of a JSON document that may carry
// comments. The output is strict JSON; comments are not preserved.
type JSONCAdapter struct {
	logger zerolog.Logger
}

// NewJSONCAdapter creates a jsonc adapter.
func NewJSONCAdapter(logger zerolog.Logger) *JSONCAdapter {
	return &JSONCAdapter{logger: logger}
}

// Format implements engine.Adapter.
func (a *JSONCAdapter) Format() string { return FormatJSONC }

// Apply overwrites each entry key that already exists in the document with
// the entry value, without merging. Keys the document lacks are skipped
// with a warning.
func (a *JSONCAdapter) Apply(path string, entries *manifest.Object) (bool, error) {
	before, err := readTarget(path, FormatJSONC)
	if err != nil {
		return false, err
	}

	doc := jsonc.ToJSON([]byte(before))
	if !gjson.ValidBytes(doc) {
		return false, engine.NewFormatMismatchError("document is not valid JSON", nil).
			WithResource(path).WithOperation(FormatJSONC)
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return false, engine.NewFormatMismatchError("document root is not an object", nil).
			WithResource(path).WithOperation(FormatJSONC)
	}

	existing := make(map[string]bool)
	root.ForEach(func(k, _ gjson.Result) bool {
		existing[k.String()] = true
		return true
	})

	for _, f := range entries.Fields {
		if !existing[f.Key] {
			a.logger.Warn().Str("file", path).Str("key", f.Key).Msg("Key not found in document")
			continue
		}
		raw, err := manifest.EncodeJSON(f.Value)
		if err != nil {
			return false, engine.NewFormatMismatchError("failed to encode entry value", err).
				WithResource(path).WithOperation(FormatJSONC).WithDetail("key", f.Key)
		}
		doc, err = sjson.SetRawBytes(doc, escapePathComponent(f.Key), raw)
		if err != nil {
			return false, engine.NewFormatMismatchError("failed to set key", err).
				WithResource(path).WithOperation(FormatJSONC).WithDetail("key", f.Key)
		}
	}

	after := string(pretty.PrettyOptions(doc, prettyOptions))
	return writeIfChanged(path, FormatJSONC, before, after)
}

// escapePathComponent makes key a literal single-component sjson path.
func escapePathComponent(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 0x80 || c == '_' || c == '-' ||
			(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return b.String()
}
