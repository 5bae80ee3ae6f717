// Package manifest loads the declarative inputs of a reconciliation run: the
// config manifest (file overrides) and the plugin manifest (installed plugin
// versions). Only the plugin manifest is ever written back.
package manifest

import (
	"path/filepath"
	"strings"
)

// Plugin origins.
const (
	OriginGitHub  = "github"
	OriginMMSDrop = "mmsdrop"
)

// RootMarker prefixes manifest paths that are relative to the installation root.
const RootMarker = "root/"

// ConfigEntry declares the key/value overrides for one target file.
type ConfigEntry struct {
	// File is the target path, usually prefixed with RootMarker.
	File string `json:"file" yaml:"file" validate:"required"`

	// Format selects the adapter: gi, cfg, jsonc, kv3 or ini.
	Format string `json:"format" yaml:"format" validate:"required"`

	// Entries are the desired values in document order.
	Entries *Object `json:"entries" yaml:"entries" validate:"required"`
}

// PluginRecord declares one managed plugin and the version last installed.
type PluginRecord struct {
	// Name identifies the plugin; owner/repo for the github origin.
	Name string `json:"name" validate:"required"`

	// Origin selects the version resolver. Empty means github.
	Origin string `json:"origin,omitempty"`

	// Asset is the asset name pattern (github) or marker file (mmsdrop).
	Asset string `json:"asset" validate:"required"`

	// Tag is the last successfully installed version.
	Tag string `json:"tag"`

	// Destination is the directory the artifact is relocated into.
	Destination string `json:"destination" validate:"required"`

	// Depth is how many wrapping directories to strip when relocating.
	Depth int `json:"depth,omitempty" validate:"gte=0"`
}

// OriginOrDefault returns the record's origin, defaulting to github.
func (p *PluginRecord) OriginOrDefault() string {
	if p.Origin == "" {
		return OriginGitHub
	}
	return p.Origin
}

// ResolvePath maps a manifest path onto the installation root. A leading
// RootMarker is stripped and the remainder joined to root; paths that are
// absolute after stripping are returned cleaned.
func ResolvePath(root, p string) string {
	rel := strings.TrimPrefix(p, RootMarker)
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(root, rel)
}
