package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

type entry struct {
	name string
	body string
	mode int64
	link string
	dir  bool
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, kind Kind, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch kind {
	case KindTarGz:
		w = gzip.NewWriter(&buf)
	case KindTarZst:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	case KindTarLz4:
		w = lz4.NewWriter(&buf)
	default:
		return data
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if e.dir {
			_, err := zw.Create(e.name + "/")
			require.NoError(t, err)
			continue
		}
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		mode := os.FileMode(0o644)
		if e.mode != 0 {
			mode = os.FileMode(e.mode)
		}
		body := e.body
		if e.link != "" {
			mode |= os.ModeSymlink
			body = e.link
		}
		hdr.SetMode(mode)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

var pluginTree = []entry{
	{name: "addons", dir: true},
	{name: "addons/metamod", dir: true},
	{name: "addons/metamod/plugin.so", body: "ELF", mode: 0o755},
	{name: "addons/metamod/plugin.vdf", body: `"Plugin" {}`},
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"plugin.zip", KindZip, true},
		{"plugin.ZIP", KindZip, true},
		{"server-linux.tar.gz", KindTarGz, true},
		{"server.tgz", KindTarGz, true},
		{"server.tar.zst", KindTarZst, true},
		{"server.tzst", KindTarZst, true},
		{"server.tar.lz4", KindTarLz4, true},
		{"server.tar", KindTar, true},
		{"plugin.so", "", false},
		{"download", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnpackTarVariants(t *testing.T) {
	raw := tarBytes(t, pluginTree)
	tests := []struct {
		file string
		kind Kind
	}{
		{"plugin.tar", KindTar},
		{"plugin.tar.gz", KindTarGz},
		{"plugin.tgz", KindTarGz},
		{"plugin.tar.zst", KindTarZst},
		{"plugin.tar.lz4", KindTarLz4},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			src := writeArchive(t, tt.file, compress(t, tt.kind, raw))
			dir := t.TempDir()

			require.NoError(t, New().Unpack(context.Background(), src, dir))

			data, err := os.ReadFile(filepath.Join(dir, "addons/metamod/plugin.so"))
			require.NoError(t, err)
			assert.Equal(t, "ELF", string(data))

			info, err := os.Stat(filepath.Join(dir, "addons/metamod/plugin.so"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
			assert.FileExists(t, filepath.Join(dir, "addons/metamod/plugin.vdf"))
		})
	}
}

func TestUnpackZip(t *testing.T) {
	src := writeArchive(t, "plugin.zip", zipBytes(t, pluginTree))
	dir := t.TempDir()

	require.NoError(t, New().Unpack(context.Background(), src, dir))

	data, err := os.ReadFile(filepath.Join(dir, "addons/metamod/plugin.vdf"))
	require.NoError(t, err)
	assert.Equal(t, `"Plugin" {}`, string(data))
	info, err := os.Stat(filepath.Join(dir, "addons/metamod/plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestUnpackOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "addons/metamod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "addons/metamod/plugin.so"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("keep"), 0o644))

	src := writeArchive(t, "plugin.tar.gz", compress(t, KindTarGz, tarBytes(t, pluginTree)))
	require.NoError(t, New().Unpack(context.Background(), src, dir))

	data, err := os.ReadFile(filepath.Join(dir, "addons/metamod/plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, "ELF", string(data))
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
}

func TestUnpackSymlinks(t *testing.T) {
	t.Run("inside target", func(t *testing.T) {
		src := writeArchive(t, "links.tar", tarBytes(t, []entry{
			{name: "lib/real.so", body: "x"},
			{name: "lib/alias.so", link: "real.so"},
		}))
		dir := t.TempDir()
		require.NoError(t, New().Unpack(context.Background(), src, dir))

		link, err := os.Readlink(filepath.Join(dir, "lib/alias.so"))
		require.NoError(t, err)
		assert.Equal(t, "real.so", link)
	})

	tests := []struct {
		name string
		link string
	}{
		{"relative escape", "../../etc/passwd"},
		{"absolute", "/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeArchive(t, "links.tar", tarBytes(t, []entry{
				{name: "lib/evil", link: tt.link},
			}))
			err := New().Unpack(context.Background(), src, t.TempDir())
			require.Error(t, err)
			assert.True(t, engine.IsFormatMismatch(err))
		})
	}
}

func TestUnpackRejectsTraversal(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
		file string
	}{
		{
			name: "tar",
			file: "evil.tar",
			data: func(t *testing.T) []byte {
				return tarBytes(t, []entry{{name: "../outside.txt", body: "x"}})
			},
		},
		{
			name: "zip",
			file: "evil.zip",
			data: func(t *testing.T) []byte {
				return zipBytes(t, []entry{{name: "../outside.txt", body: "x"}})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dir := filepath.Join(parent, "dest")
			src := writeArchive(t, tt.file, tt.data(t))

			err := New().Unpack(context.Background(), src, dir)
			require.Error(t, err)
			assert.True(t, engine.IsFormatMismatch(err))
			assert.NoFileExists(t, filepath.Join(parent, "outside.txt"))
		})
	}
}

func TestUnpackErrors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		src := writeArchive(t, "plugin.rar", []byte("rar"))
		err := New().Unpack(context.Background(), src, t.TempDir())
		require.Error(t, err)
		assert.True(t, engine.IsUnknownKind(err))
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		src := writeArchive(t, "plugin.tar.gz", []byte("not gzip at all"))
		err := New().Unpack(context.Background(), src, t.TempDir())
		require.Error(t, err)
		assert.True(t, engine.IsFormatMismatch(err))
	})

	t.Run("missing archive", func(t *testing.T) {
		err := New().Unpack(context.Background(), filepath.Join(t.TempDir(), "gone.zip"), t.TempDir())
		require.Error(t, err)
		assert.True(t, engine.IsNotFound(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := writeArchive(t, "plugin.tar", tarBytes(t, pluginTree))
		err := New().Unpack(ctx, src, t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
