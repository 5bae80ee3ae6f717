package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// DefaultMMSDropURL is the Metamod:Source snapshot drop.
const DefaultMMSDropURL = "https://mms.alliedmods.net/mmsdrop/2.0/"

// MMSDropOptions configures an MMSDropResolver.
type MMSDropOptions struct {
	// BaseURL is the drop directory. Defaults to DefaultMMSDropURL.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Client is the HTTP client to use.
	Client *http.Client
}

// MMSDropResolver resolves plugins published to a drop directory that
// holds a marker file naming the current build, such as
// "mmsource-latest-linux" containing "mmsource-2.0.0-git1350-linux.tar.gz".
type MMSDropResolver struct {
	base      *url.URL
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

// NewMMSDropResolver creates a drop resolver.
func NewMMSDropResolver(logger zerolog.Logger, opts MMSDropOptions) (*MMSDropResolver, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultMMSDropURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, engine.NewInvalidError("invalid drop base URL", err).WithResource(raw)
	}
	return &MMSDropResolver{
		base:      base,
		userAgent: opts.UserAgent,
		client:    newClient(opts.Client),
		logger:    logger.With().Str("component", "resolver.mmsdrop").Logger(),
	}, nil
}

// Resolve reads the marker named by the record's asset. The trimmed marker
// content is the current file name; its third "-" separated segment is the
// tag, and the download URL is the file name resolved against the base.
func (r *MMSDropResolver) Resolve(ctx context.Context, record *manifest.PluginRecord) (*engine.Release, error) {
	markerURL, err := r.resolve(record.Asset)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if r.userAgent != "" {
		header.Set("User-Agent", r.userAgent)
	}
	body, err := get(ctx, r.client, markerURL, header)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(string(body))
	parts := strings.Split(name, "-")
	if len(parts) < 3 || parts[2] == "" {
		return nil, engine.NewFormatMismatchError("marker does not name a versioned file", nil).
			WithResource(record.Name).WithDetail("marker", name)
	}

	downloadURL, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Str("plugin", record.Name).Str("file", name).Msg("Read drop marker")
	return &engine.Release{Tag: parts[2], URL: downloadURL}, nil
}

func (r *MMSDropResolver) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", engine.NewInvalidError("invalid drop path", err).WithResource(ref)
	}
	return r.base.ResolveReference(u).String(), nil
}
