package manifest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseConfigsKeepsOrder(t *testing.T) {
	data := []byte(`[
		// gameinfo search paths, inserted in this order
		{
			"file": "root/game/csgo/gameinfo.gi",
			"format": "gi",
			"entries": {
				"z": "Game\tcsgo/addons/metamod",
				"a": "Game\tcsgo/addons/cs2kz",
				"m": 1.50,
			},
		},
		/* nested values */
		{
			"file": "root/game/csgo/cfg/settings.kv3",
			"format": "kv3",
			"entries": {"server": {"tickrate": 128, "hibernate": false}, "list": [1, "two", null]}
		}
	]`)

	entries, err := ParseConfigs(data, ".json")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, []string{"z", "a", "m"}, entries[0].Entries.Keys())
	v, ok := entries[0].Entries.Get("m")
	require.True(t, ok)
	assert.Equal(t, json.Number("1.50"), v)
	assert.Equal(t, "1.50", FormatScalar(v))

	server, ok := entries[1].Entries.Get("server")
	require.True(t, ok)
	nested := server.(*Object)
	assert.Equal(t, []string{"tickrate", "hibernate"}, nested.Keys())
	hibernate, _ := nested.Get("hibernate")
	assert.Equal(t, false, hibernate)

	list, _ := entries[1].Entries.Get("list")
	assert.Equal(t, []any{json.Number("1"), "two", nil}, list)
}

func TestParseConfigsYAML(t *testing.T) {
	data := []byte(`
- file: root/game/csgo/cfg/server.cfg
  format: cfg
  entries:
    sv_cheats: 0
    hostname: "{env.HOSTNAME}"
    sv_lan: false
    sv_gravity: 800.5
    mp_nothing: null
`)
	entries, err := ParseConfigs(data, ".yaml")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0].Entries
	assert.Equal(t, []string{"sv_cheats", "hostname", "sv_lan", "sv_gravity", "mp_nothing"}, e.Keys())
	v, _ := e.Get("sv_cheats")
	assert.Equal(t, json.Number("0"), v)
	v, _ = e.Get("sv_lan")
	assert.Equal(t, false, v)
	v, _ = e.Get("sv_gravity")
	assert.Equal(t, "800.5", FormatScalar(v))
	v, ok := e.Get("mp_nothing")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestParseConfigsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{name: "not an array", data: `{"file": "x"}`, ext: ".json"},
		{name: "entries not an object", data: `[{"file": "x", "format": "cfg", "entries": [1]}]`, ext: ".json"},
		{name: "broken json", data: `[{"file": `, ext: ".json"},
		{name: "yaml entries scalar", data: "- file: x\n  format: cfg\n  entries: 3\n", ext: ".yml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigs([]byte(tt.data), tt.ext)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&ConfigEntry{File: "root/a", Format: "cfg", Entries: NewObject()}).Validate())
	assert.Error(t, (&ConfigEntry{File: "root/a", Format: "cfg"}).Validate())
	assert.Error(t, (&ConfigEntry{Format: "cfg", Entries: NewObject()}).Validate())

	assert.NoError(t, (&PluginRecord{Name: "a/b", Asset: "x", Destination: "root/x"}).Validate())
	assert.Error(t, (&PluginRecord{Name: "a/b", Asset: "x", Destination: "root/x", Depth: -1}).Validate())
	assert.Error(t, (&PluginRecord{Name: "a/b", Destination: "root/x"}).Validate())
}

func TestOriginOrDefault(t *testing.T) {
	assert.Equal(t, OriginGitHub, (&PluginRecord{}).OriginOrDefault())
	assert.Equal(t, OriginMMSDrop, (&PluginRecord{Origin: "mmsdrop"}).OriginOrDefault())
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"root/game/csgo/cfg/server.cfg", "/home/steam/cs2/game/csgo/cfg/server.cfg"},
		{"game/csgo/gameinfo.gi", "/home/steam/cs2/game/csgo/gameinfo.gi"},
		{"/etc/kz/server.cfg", "/etc/kz/server.cfg"},
		{"root//etc/kz/server.cfg", "/etc/kz/server.cfg"},
		{"other/root/x", "/home/steam/cs2/other/root/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePath("/home/steam/cs2", tt.in))
		})
	}
}

const plugins = `[
  {"name": "kz/cs2kz", "asset": "linux*", "tag": "1.0", "destination": "root/addons", "depth": 1, "comment": "main plugin"},
  {"name": "mmsource", "origin": "mmsdrop", "asset": "mmsource-latest-linux", "tag": "", "destination": "root/game/csgo"}
]`

func TestPluginManifestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.json")
	require.NoError(t, os.WriteFile(path, []byte(plugins), 0o644))

	m, err := LoadPlugins(path)
	require.NoError(t, err)
	require.Len(t, m.Plugins, 2)
	assert.Equal(t, 1, m.Plugins[0].Depth)
	assert.Equal(t, "", m.Plugins[1].Tag)

	m.Plugins[0].Tag = "1.1"
	m.Plugins[1].Tag = "git1350"
	require.NoError(t, m.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(data)
	assert.Equal(t, "1.1", doc.Get("0.tag").String())
	assert.Equal(t, "git1350", doc.Get("1.tag").String())
	assert.Equal(t, "main plugin", doc.Get("0.comment").String())
	assert.Contains(t, string(data), "\n    {")

	reloaded, err := LoadPlugins(path)
	require.NoError(t, err)
	assert.Equal(t, m.Plugins, reloaded.Plugins)
}

func TestParsePluginsStrict(t *testing.T) {
	_, err := ParsePlugins([]byte(`[
		// comments are not allowed here
		{"name": "a/b"}
	]`))
	assert.Error(t, err)
}

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "de_dust2", "de_dust2"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"number", json.Number("128"), "128"},
		{"nil", nil, ""},
		{"nested", NewObject(Field{"b", 1}, Field{"a", "x"}), `{"b":1,"a":"x"}`},
		{"list", []any{"a", true}, `["a",true]`},
		{"html", "<b>&</b>", "<b>&</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatScalar(tt.in))
		})
	}
}

func TestWatchDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configs.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, zerolog.Nop(), path, 100*time.Millisecond, func() { calls.Add(1) })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("[ ]"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
