package engine

import (
	"context"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// Adapter patches one target file syntax with manifest entries.
type Adapter interface {
	// Format returns the manifest format tag the adapter handles.
	Format() string

	// Apply writes entries into the file at path. It reports whether the
	// file content changed. Already-applied entries are a no-op.
	Apply(path string, entries *manifest.Object) (bool, error)
}

// AdapterRegistry looks up the adapter for a format tag.
type AdapterRegistry interface {
	Lookup(format string) (Adapter, bool)
}

// Release is the latest published version of a plugin.
type Release struct {
	// Tag is the version tag.
	Tag string `json:"tag"`

	// URL is the download location of the matching artifact.
	URL string `json:"url"`
}

// Resolver finds the latest release of a plugin. Resolvers keep no local
// state; comparing tags against the manifest is the caller's job.
type Resolver interface {
	Resolve(ctx context.Context, record *manifest.PluginRecord) (*Release, error)
}

// ResolverRegistry looks up the resolver for a plugin origin.
type ResolverRegistry interface {
	Lookup(origin string) (Resolver, bool)
}

// Installer downloads an artifact and relocates its contents into
// destination, stripping depth wrapping directories.
type Installer interface {
	Install(ctx context.Context, url, destination string, depth int) error
}

// Fetcher downloads url into dir and returns the local file path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// Unpacker extracts an archive into dir, choosing the format from the
// archive's file name.
type Unpacker interface {
	Unpack(ctx context.Context, archive, dir string) error
}
