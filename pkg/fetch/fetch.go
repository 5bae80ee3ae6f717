// Package fetch downloads artifacts to local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/telemetry"
)

// DefaultTimeout bounds a whole download.
const DefaultTimeout = 10 * time.Minute

// Options configures an HTTPFetcher.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Client is the HTTP client to use.
	Client *http.Client

	// Metrics receives downloaded byte counts. May be nil.
	Metrics *telemetry.Metrics
}

// HTTPFetcher downloads over HTTP(S). Local paths starting with "/" or "."
// are copied instead.
type HTTPFetcher struct {
	userAgent string
	client    *http.Client
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

// New creates an HTTPFetcher.
func New(logger zerolog.Logger, opts Options) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPFetcher{
		userAgent: opts.UserAgent,
		client:    client,
		metrics:   opts.Metrics,
		logger:    logger.With().Str("component", "fetch").Logger(),
	}
}

// Fetch stores the artifact at rawURL in dir under the last path segment
// of the URL and returns the file path. The file only appears once it is
// complete. A body shorter than the advertised Content-Length is an
// integrity error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	if strings.HasPrefix(rawURL, "/") || strings.HasPrefix(rawURL, ".") {
		return f.copyLocal(rawURL, dir)
	}

	dest := filepath.Join(dir, fileName(rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", engine.NewTransportError("failed to build request", err).WithResource(rawURL)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", engine.NewTransportError("download failed", err).WithResource(rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", engine.NewTransportError(fmt.Sprintf("download failed with status %d", resp.StatusCode), nil).
			WithResource(rawURL).WithDetail("status", resp.StatusCode)
	}

	written, err := writeComplete(dir, dest, resp.Body, resp.ContentLength)
	if err != nil {
		return "", withResource(err, rawURL)
	}

	f.metrics.AddDownloadBytes(written)
	f.logger.Info().
		Str("url", rawURL).
		Str("size", humanize.Bytes(uint64(written))).
		Dur("elapsed", time.Since(start)).
		Msg("Downloaded artifact")
	return dest, nil
}

func (f *HTTPFetcher) copyLocal(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", engine.NewNotFoundError("local artifact not readable", err).WithResource(src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", engine.NewFilesystemError("failed to stat local artifact", err).WithResource(src)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	if _, err := writeComplete(dir, dest, in, info.Size()); err != nil {
		return "", withResource(err, src)
	}
	f.logger.Debug().Str("path", src).Msg("Copied local artifact")
	return dest, nil
}

// writeComplete streams r into a temp file in dir and renames it to dest
// once length bytes (if known) have been written.
func writeComplete(dir, dest string, r io.Reader, length int64) (int64, error) {
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, engine.NewFilesystemError("failed to create download file", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, engine.NewTransportError("download interrupted", err)
	}
	if length > 0 && written < length {
		return written, engine.NewIntegrityError(fmt.Sprintf("download incomplete, %d < %d bytes", written, length), nil)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return written, engine.NewFilesystemError("failed to move download into place", err)
	}
	success = true
	return written, nil
}

func withResource(err error, resource string) error {
	if e, ok := err.(*engine.Error); ok && e.Resource == "" {
		return e.WithResource(resource)
	}
	return err
}

// fileName returns the last path segment of rawURL.
func fileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	} else {
		name = rawURL[strings.LastIndex(rawURL, "/")+1:]
	}
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}
