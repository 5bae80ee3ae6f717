package envsubst

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

func lookupFrom(vars map[string]string) LookupFunc {
	return func(name string) string { return vars[name] }
}

func TestString(t *testing.T) {
	lookup := lookupFrom(map[string]string{"HOSTNAME": "kz-eu", "PORT": "27015"})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no placeholder", in: "plain", want: "plain"},
		{name: "single", in: "{env.HOSTNAME}", want: "kz-eu"},
		{name: "embedded twice", in: "{env.HOSTNAME}:{env.PORT}/{env.HOSTNAME}", want: "kz-eu:27015/kz-eu"},
		{name: "unset is empty", in: "pw={env.RCON_PASSWORD}", want: "pw="},
		{name: "not a placeholder", in: "{envHOSTNAME} {env.}", want: "{envHOSTNAME} {env.}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.in, lookup))
		})
	}
}

func TestValueNested(t *testing.T) {
	lookup := lookupFrom(map[string]string{"NAME": "kz"})

	inner := manifest.NewObject(
		manifest.Field{Key: "title", Value: "{env.NAME} server"},
		manifest.Field{Key: "list", Value: []any{"{env.NAME}", true, []any{"deep {env.NAME}"}}},
	)
	in := manifest.NewObject(
		manifest.Field{Key: "hostname", Value: "{env.NAME}"},
		manifest.Field{Key: "maxplayers", Value: json.Number("32")},
		manifest.Field{Key: "lan", Value: false},
		manifest.Field{Key: "nested", Value: inner},
	)

	out := Value(in, lookup).(*manifest.Object)

	assert.Equal(t, []string{"hostname", "maxplayers", "lan", "nested"}, out.Keys())
	v, _ := out.Get("hostname")
	assert.Equal(t, "kz", v)
	v, _ = out.Get("maxplayers")
	assert.Equal(t, json.Number("32"), v)
	v, _ = out.Get("lan")
	assert.Equal(t, false, v)

	nested, _ := out.Get("nested")
	title, _ := nested.(*manifest.Object).Get("title")
	assert.Equal(t, "kz server", title)
	list, _ := nested.(*manifest.Object).Get("list")
	assert.Equal(t, []any{"kz", true, []any{"deep kz"}}, list)

	// The input tree is untouched.
	orig, _ := in.Get("hostname")
	assert.Equal(t, "{env.NAME}", orig)
	origTitle, _ := inner.Get("title")
	assert.Equal(t, "{env.NAME} server", origTitle)
}

func TestValueDeepNesting(t *testing.T) {
	var v any = "{env.X}"
	for i := 0; i < 10000; i++ {
		v = []any{v}
	}
	out := Value(v, lookupFrom(map[string]string{"X": "y"}))
	for i := 0; i < 10000; i++ {
		out = out.([]any)[0]
	}
	assert.Equal(t, "y", out)
}

func TestValueEnvironment(t *testing.T) {
	t.Setenv("KZW_TEST_VALUE", "from-env")
	assert.Equal(t, "from-env", Value("{env.KZW_TEST_VALUE}", nil))
}
