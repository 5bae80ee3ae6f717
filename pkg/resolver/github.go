package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// Origins handled by this package.
const (
	OriginGitHub  = manifest.OriginGitHub
	OriginMMSDrop = manifest.OriginMMSDrop
)

// DefaultGitHubAPI is the public GitHub REST API.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubOptions configures a GitHubResolver.
type GitHubOptions struct {
	// APIBase is the REST API root. Defaults to DefaultGitHubAPI.
	APIBase string

	// Token authenticates requests when set. Without it requests are
	// anonymous and subject to lower rate limits.
	Token string

	// UserAgent is sent with every request.
	UserAgent string

	// Client is the HTTP client to use.
	Client *http.Client
}

// GitHubResolver resolves plugins published as GitHub releases.
type GitHubResolver struct {
	apiBase   string
	token     string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// NewGitHubResolver creates a GitHub resolver.
func NewGitHubResolver(logger zerolog.Logger, opts GitHubOptions) *GitHubResolver {
	base := opts.APIBase
	if base == "" {
		base = DefaultGitHubAPI
	}
	return &GitHubResolver{
		apiBase:   strings.TrimRight(base, "/"),
		token:     opts.Token,
		userAgent: opts.UserAgent,
		client:    newClient(opts.Client),
		logger:    logger.With().Str("component", "resolver.github").Logger(),
	}
}

// Resolve returns the tag of the latest release of owner/repo and the
// download URL of its first asset matching the record's asset pattern.
func (r *GitHubResolver) Resolve(ctx context.Context, record *manifest.PluginRecord) (*engine.Release, error) {
	owner, repo, ok := strings.Cut(record.Name, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, engine.NewInvalidError("plugin name must be owner/repo", nil).WithResource(record.Name)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiBase, owner, repo)
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	if r.userAgent != "" {
		header.Set("User-Agent", r.userAgent)
	}
	if r.token != "" {
		header.Set("Authorization", "Bearer "+r.token)
	}

	body, err := get(ctx, r.client, url, header)
	if err != nil {
		return nil, err
	}

	var rel githubRelease
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, engine.NewFormatMismatchError("invalid release response", err).WithResource(record.Name)
	}
	if rel.TagName == "" {
		return nil, engine.NewFormatMismatchError("release has no tag", nil).WithResource(record.Name)
	}

	for _, asset := range rel.Assets {
		if MatchAsset(asset.Name, record.Asset) {
			r.logger.Debug().
				Str("plugin", record.Name).
				Str("tag", rel.TagName).
				Str("asset", asset.Name).
				Msg("Matched release asset")
			return &engine.Release{Tag: rel.TagName, URL: asset.BrowserDownloadURL}, nil
		}
	}

	return nil, engine.NewNotFoundError(fmt.Sprintf("no asset matches %q in release %s", record.Asset, rel.TagName), nil).
		WithResource(record.Name)
}
