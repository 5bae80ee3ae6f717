// Package installer downloads plugin archives and relocates their contents
// into a destination directory.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

// Installer implements engine.Installer on top of a Fetcher and an Unpacker.
type Installer struct {
	fetcher    engine.Fetcher
	unpacker   engine.Unpacker
	stagingDir string
	logger     zerolog.Logger
}

// New creates an Installer. Downloads and intermediate extractions live in
// fresh directories under stagingDir, or the system temp dir when empty.
func New(logger zerolog.Logger, fetcher engine.Fetcher, unpacker engine.Unpacker, stagingDir string) *Installer {
	return &Installer{
		fetcher:    fetcher,
		unpacker:   unpacker,
		stagingDir: stagingDir,
		logger:     logger.With().Str("component", "installer").Logger(),
	}
}

// Install fetches url and extracts it into destination. With depth > 0
// the archive is extracted to a scratch directory first, depth levels of
// wrapping directories are stripped by descending into the first
// subdirectory at each level, and the remaining tree is merged into
// destination. Existing files in destination are overwritten; others are
// left alone. Nothing is left behind in the staging area.
func (i *Installer) Install(ctx context.Context, url, destination string, depth int) error {
	if depth < 0 {
		return engine.NewInvalidError(fmt.Sprintf("depth must be >= 0, got %d", depth), nil).WithResource(url)
	}
	start := time.Now()

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return engine.NewFilesystemError("failed to create destination", err).WithResource(destination)
	}

	staging := i.stagingDir
	if staging == "" {
		staging = os.TempDir()
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return engine.NewFilesystemError("failed to create staging directory", err).WithResource(staging)
	}
	work, err := os.MkdirTemp(staging, "install-*")
	if err != nil {
		return engine.NewFilesystemError("failed to create work directory", err).WithResource(staging)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			i.logger.Warn().Err(err).Str("path", work).Msg("Failed to clean up work directory")
		}
	}()

	archivePath, err := i.fetcher.Fetch(ctx, url, work)
	if err != nil {
		return err
	}

	if depth == 0 {
		if err := i.unpacker.Unpack(ctx, archivePath, destination); err != nil {
			return err
		}
	} else {
		scratch := filepath.Join(work, "extract")
		if err := i.unpacker.Unpack(ctx, archivePath, scratch); err != nil {
			return err
		}
		root, err := descend(scratch, depth)
		if err != nil {
			return engine.NewFilesystemError("failed to strip wrapping directories", err).WithResource(url)
		}
		if err := mergeTree(root, destination); err != nil {
			return engine.NewFilesystemError("failed to move contents into destination", err).
				WithResource(destination)
		}
	}

	i.logger.Debug().
		Str("url", url).
		Str("destination", destination).
		Int("depth", depth).
		Dur("elapsed", time.Since(start)).
		Msg("Installed artifact")
	return nil
}

// descend walks depth levels down from dir, entering the first
// subdirectory in lexical order each time. It stops early at a level with
// no subdirectory.
func descend(dir string, depth int) (string, error) {
	current := dir
	for level := 0; level < depth; level++ {
		entries, err := os.ReadDir(current)
		if err != nil {
			return "", err
		}
		next := ""
		for _, e := range entries {
			if e.IsDir() {
				next = filepath.Join(current, e.Name())
				break
			}
		}
		if next == "" {
			break
		}
		current = next
	}
	return current, nil
}
