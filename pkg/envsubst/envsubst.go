// Package envsubst replaces {env.NAME} placeholders in manifest values with
// environment variable values.
package envsubst

import (
	"os"
	"regexp"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

var placeholder = regexp.MustCompile(`\{env\.([^}]+)\}`)

// LookupFunc returns the value of an environment variable.
type LookupFunc func(name string) string

// Getenv looks variables up in the process environment. Unset variables
// yield the empty string.
func Getenv(name string) string {
	return os.Getenv(name)
}

// String replaces every placeholder in s.
func String(s string, lookup LookupFunc) string {
	if lookup == nil {
		lookup = Getenv
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		return lookup(placeholder.FindStringSubmatch(m)[1])
	})
}

// Value returns a copy of v with placeholders replaced in every string,
// at any depth of *manifest.Object and []any nesting. Other values are
// returned unchanged. v itself is never modified.
func Value(v any, lookup LookupFunc) any {
	if lookup == nil {
		lookup = Getenv
	}
	switch val := v.(type) {
	case string:
		return String(val, lookup)
	case *manifest.Object:
		if val == nil {
			return val
		}
		return Object(val, lookup)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Value(item, lookup)
		}
		return out
	default:
		return v
	}
}

// Object returns a substituted copy of obj.
func Object(obj *manifest.Object, lookup LookupFunc) *manifest.Object {
	out := &manifest.Object{Fields: make([]manifest.Field, 0, obj.Len())}
	for _, f := range obj.Fields {
		out.Fields = append(out.Fields, manifest.Field{Key: f.Key, Value: Value(f.Value, lookup)})
	}
	return out
}

// Strings substitutes each element of args.
func Strings(args []string, lookup LookupFunc) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = String(a, lookup)
	}
	return out
}
