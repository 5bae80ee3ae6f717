package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzwarden/kzwarden/pkg/archive"
	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/fetch"
)

type file struct {
	name string
	body string
	mode int64
}

func writeTarGz(t *testing.T, files []file) string {
	t.Helper()
	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0o644
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     f.name,
			Typeflag: tar.TypeReg,
			Mode:     mode,
			Size:     int64(len(f.body)),
		}))
		_, err := tw.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "plugin.tar.gz")
	require.NoError(t, os.WriteFile(path, raw.Bytes(), 0o644))
	return path
}

func newInstaller(t *testing.T) (*Installer, string) {
	t.Helper()
	staging := filepath.Join(t.TempDir(), "staging")
	return New(zerolog.Nop(), fetch.New(zerolog.Nop(), fetch.Options{}), archive.New(), staging), staging
}

func TestInstallStripsWrappingDirectory(t *testing.T) {
	src := writeTarGz(t, []file{
		{name: "v2.3/plugin.so", body: "ELF", mode: 0o755},
		{name: "v2.3/cfg/plugin.cfg", body: "setting 1"},
	})
	inst, staging := newInstaller(t)
	dest := filepath.Join(t.TempDir(), "plugins")

	require.NoError(t, inst.Install(context.Background(), src, dest, 1))

	data, err := os.ReadFile(filepath.Join(dest, "plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, "ELF", string(data))
	info, err := os.Stat(filepath.Join(dest, "plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.FileExists(t, filepath.Join(dest, "cfg/plugin.cfg"))
	assert.NoDirExists(t, filepath.Join(dest, "v2.3"))

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallDepthZeroExtractsInPlace(t *testing.T) {
	src := writeTarGz(t, []file{{name: "addons/metamod/plugin.so", body: "ELF"}})
	inst, _ := newInstaller(t)
	dest := t.TempDir()

	require.NoError(t, inst.Install(context.Background(), src, dest, 0))

	assert.FileExists(t, filepath.Join(dest, "addons/metamod/plugin.so"))
	assert.NoFileExists(t, filepath.Join(dest, "plugin.tar.gz"))
}

func TestInstallDepthBeyondTreeStops(t *testing.T) {
	src := writeTarGz(t, []file{{name: "release/plugin.so", body: "ELF"}})
	inst, _ := newInstaller(t)
	dest := t.TempDir()

	require.NoError(t, inst.Install(context.Background(), src, dest, 3))

	assert.FileExists(t, filepath.Join(dest, "plugin.so"))
}

func TestInstallMergesIntoExistingDestination(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "cfg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "plugin.so"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "cfg/user.cfg"), []byte("mine"), 0o644))

	src := writeTarGz(t, []file{
		{name: "pkg-1.1/plugin.so", body: "new"},
		{name: "pkg-1.1/cfg/plugin.cfg", body: "defaults"},
	})
	inst, _ := newInstaller(t)

	require.NoError(t, inst.Install(context.Background(), src, dest, 1))

	data, err := os.ReadFile(filepath.Join(dest, "plugin.so"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.FileExists(t, filepath.Join(dest, "cfg/user.cfg"))
	assert.FileExists(t, filepath.Join(dest, "cfg/plugin.cfg"))
}

func TestInstallErrors(t *testing.T) {
	inst, _ := newInstaller(t)

	t.Run("negative depth", func(t *testing.T) {
		err := inst.Install(context.Background(), "/nowhere.tar.gz", t.TempDir(), -1)
		require.Error(t, err)
		assert.Equal(t, engine.ErrorClassInvalid, engine.ClassOf(err))
	})

	t.Run("fetch failure", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "plugins")
		err := inst.Install(context.Background(), filepath.Join(t.TempDir(), "missing.tar.gz"), dest, 0)
		require.Error(t, err)
		assert.True(t, engine.IsNotFound(err))
	})

	t.Run("unknown archive", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "plugin.rar")
		require.NoError(t, os.WriteFile(src, []byte("rar"), 0o644))
		err := inst.Install(context.Background(), src, t.TempDir(), 0)
		require.Error(t, err)
		assert.True(t, engine.IsUnknownKind(err))
	})
}

func TestDescend(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b/inner"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a/inner"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "0.txt"), nil, 0o644))

	got, err := descend(root, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a"), got)

	got, err = descend(root, 5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a/inner"), got)
}
