package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/kzwarden/kzwarden/pkg/atomicfile"
)

var validate = validator.New()

// Validate checks the entry's required fields. Unknown formats are not
// rejected here; the driver reports them per entry.
func (e *ConfigEntry) Validate() error {
	return validate.Struct(e)
}

// Validate checks the record's required fields and depth.
func (p *PluginRecord) Validate() error {
	return validate.Struct(p)
}

// LoadConfigs reads the config manifest. Files ending in .yaml or .yml are
// decoded as YAML; anything else as JSON with comments and trailing commas
// permitted.
func LoadConfigs(path string) ([]ConfigEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config manifest: %w", err)
	}
	return ParseConfigs(data, strings.ToLower(filepath.Ext(path)))
}

// ParseConfigs decodes config manifest content. ext selects YAML (".yaml",
// ".yml") or relaxed JSON (anything else).
func ParseConfigs(data []byte, ext string) ([]ConfigEntry, error) {
	var entries []ConfigEntry
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("invalid config manifest: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
			return nil, fmt.Errorf("invalid config manifest: %w", err)
		}
	}
	return entries, nil
}

// PluginManifest is the loaded plugin manifest. Tags of Plugins may be
// changed in memory and persisted with Save.
type PluginManifest struct {
	// Path is where the manifest was loaded from and is saved to.
	Path string

	// Plugins are the records in manifest order.
	Plugins []PluginRecord

	raw []byte
}

// LoadPlugins reads the plugin manifest as strict JSON.
func LoadPlugins(path string) (*PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin manifest: %w", err)
	}
	m, err := ParsePlugins(data)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// ParsePlugins decodes plugin manifest content.
func ParsePlugins(data []byte) (*PluginManifest, error) {
	var plugins []PluginRecord
	if err := json.Unmarshal(data, &plugins); err != nil {
		return nil, fmt.Errorf("invalid plugin manifest: %w", err)
	}
	return &PluginManifest{Plugins: plugins, raw: data}, nil
}

// Encode returns the manifest document with the current tags, pretty-printed
// with four-space indentation. Fields the records do not model are kept.
func (m *PluginManifest) Encode() ([]byte, error) {
	doc := m.raw
	if len(doc) == 0 {
		doc = []byte("[]")
	}
	var err error
	for i, p := range m.Plugins {
		doc, err = sjson.SetBytes(doc, strconv.Itoa(i)+".tag", p.Tag)
		if err != nil {
			return nil, fmt.Errorf("failed to set tag of %s: %w", p.Name, err)
		}
	}
	return pretty.PrettyOptions(doc, &pretty.Options{Indent: "    ", Width: 80}), nil
}

// Save writes the manifest back to Path atomically.
func (m *PluginManifest) Save() error {
	out, err := m.Encode()
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(m.Path, out, 0o644); err != nil {
		return fmt.Errorf("failed to save plugin manifest: %w", err)
	}
	m.raw = out
	return nil
}
