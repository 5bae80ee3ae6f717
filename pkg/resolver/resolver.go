// Package resolver looks up the latest published version of a plugin on its
// origin. Lookups are stateless; the caller decides whether a resolved tag
// means an update.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

// DefaultTimeout bounds a single origin request.
const DefaultTimeout = 30 * time.Second

// Registry maps plugin origins to resolvers.
type Registry struct {
	resolvers map[string]engine.Resolver
}

// NewRegistry returns a registry with the github and mmsdrop resolvers.
func NewRegistry(github *GitHubResolver, mmsdrop *MMSDropResolver) *Registry {
	return &Registry{resolvers: map[string]engine.Resolver{
		OriginGitHub:  github,
		OriginMMSDrop: mmsdrop,
	}}
}

// Lookup returns the resolver for origin.
func (r *Registry) Lookup(origin string) (engine.Resolver, bool) {
	res, ok := r.resolvers[origin]
	return res, ok
}

// MatchAsset reports whether an asset name matches pattern. Without "*"
// the pattern must occur in name. With "*" the pattern is split into its
// literal fragments, which must all occur in name in pattern order.
func MatchAsset(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(name, pattern)
	}
	rest := name
	for _, frag := range strings.Split(pattern, "*") {
		if frag == "" {
			continue
		}
		i := strings.Index(rest, frag)
		if i < 0 {
			return false
		}
		rest = rest[i+len(frag):]
	}
	return true
}

// get performs a GET and returns the body of a 2xx response.
func get(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, engine.NewTransportError("failed to build request", err).WithResource(url)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, engine.NewTransportError("request failed", err).WithResource(url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for the error message.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, engine.NewTransportError(fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).
			WithResource(url).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.NewTransportError("failed to read response", err).WithResource(url)
	}
	return body, nil
}

func newClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}
