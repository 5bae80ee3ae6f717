// Package archive unpacks plugin archives into directories. The archive
// type is taken from the file name.
package archive

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

// Kind identifies an archive format.
type Kind string

const (
	KindZip    Kind = "zip"
	KindTar    Kind = "tar"
	KindTarGz  Kind = "tar.gz"
	KindTarZst Kind = "tar.zst"
	KindTarLz4 Kind = "tar.lz4"
)

var suffixes = []struct {
	suffix string
	kind   Kind
}{
	{".tar.gz", KindTarGz},
	{".tgz", KindTarGz},
	{".tar.zst", KindTarZst},
	{".tzst", KindTarZst},
	{".tar.lz4", KindTarLz4},
	{".tar", KindTar},
	{".zip", KindZip},
}

// Detect returns the archive kind for a file name.
func Detect(name string) (Kind, bool) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind, true
		}
	}
	return "", false
}

// Unpacker extracts archives. It implements engine.Unpacker.
type Unpacker struct{}

// New returns an Unpacker.
func New() *Unpacker {
	return &Unpacker{}
}

// Unpack extracts archivePath into dir, creating dir if needed. Entries
// that would land outside dir are rejected.
func (u *Unpacker) Unpack(ctx context.Context, archivePath, dir string) error {
	kind, ok := Detect(archivePath)
	if !ok {
		return engine.NewUnknownKindError("unsupported archive type", nil).WithResource(archivePath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engine.NewFilesystemError("failed to create extraction directory", err).WithResource(dir)
	}

	var err error
	switch kind {
	case KindZip:
		err = unzip(ctx, archivePath, dir)
	default:
		err = untarFile(ctx, archivePath, dir, kind)
	}
	if err != nil {
		var e *engine.Error
		if errors.As(err, &e) {
			return err
		}
		return engine.NewFormatMismatchError("failed to extract archive", err).
			WithResource(archivePath).WithOperation(string(kind))
	}
	return nil
}

func untarFile(ctx context.Context, archivePath, dir string, kind Kind) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return engine.NewNotFoundError("failed to open archive", err).WithResource(archivePath)
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case KindTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	case KindTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	case KindTarLz4:
		r = lz4.NewReader(f)
	}
	return untar(ctx, r, dir)
}

func untar(ctx context.Context, r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}
		if target == dir {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dir, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			src, err := safeJoin(dir, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := copyFile(src, target); err != nil {
				return err
			}
		default:
			// Devices, fifos and pax metadata entries carry no payload.
		}
	}
}

func unzip(ctx context.Context, archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return engine.NewNotFoundError("failed to open archive", err).WithResource(archivePath)
		}
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if target == dir {
			continue
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			link, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := writeSymlink(dir, target, link); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// safeJoin joins an archive entry name onto dir, rejecting names that
// escape it.
func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return dir, nil
	}
	if !filepath.IsLocal(clean) {
		return "", engine.NewFormatMismatchError(fmt.Sprintf("archive entry %q escapes the target directory", name), nil)
	}
	return filepath.Join(dir, clean), nil
}

// writeFile replaces target with the content of r. An existing entry is
// removed first so that links at target are never followed.
func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := removeNonDir(target); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeSymlink(dir, target, link string) error {
	if filepath.IsAbs(link) {
		return engine.NewFormatMismatchError(fmt.Sprintf("symlink %q has an absolute target", target), nil)
	}
	resolved := filepath.Join(filepath.Dir(target), link)
	rel, err := filepath.Rel(dir, resolved)
	if err != nil || !filepath.IsLocal(rel) {
		return engine.NewFormatMismatchError(fmt.Sprintf("symlink %q points outside the target directory", target), nil)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := removeNonDir(target); err != nil {
		return err
	}
	return os.Symlink(link, target)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	return writeFile(dst, in, info.Mode().Perm())
}

func removeNonDir(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s exists and is a directory", path)
	}
	return os.Remove(path)
}
