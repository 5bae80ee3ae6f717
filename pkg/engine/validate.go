package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// Problem is an issue found while validating a manifest without applying it.
type Problem struct {
	// Kind is KindConfig or KindPlugin.
	Kind string `json:"kind"`

	// Index is the item's position in its manifest.
	Index int `json:"index"`

	// Name is the target file or plugin name.
	Name string `json:"name"`

	// Class classifies the problem.
	Class ErrorClass `json:"class"`

	// Message describes the problem.
	Message string `json:"message"`
}

// String implements fmt.Stringer.
func (p Problem) String() string {
	return fmt.Sprintf("%s #%d %s [%s]: %s", p.Kind, p.Index, p.Name, p.Class, p.Message)
}

// ValidateConfigs reports entries that would fail before reaching their
// adapter: invalid entries, unknown formats and missing target files.
func (r *Reconciler) ValidateConfigs(entries []manifest.ConfigEntry) []Problem {
	var problems []Problem
	for i := range entries {
		entry := &entries[i]
		add := func(class ErrorClass, msg string) {
			problems = append(problems, Problem{Kind: KindConfig, Index: i, Name: entry.File, Class: class, Message: msg})
		}

		if err := entry.Validate(); err != nil {
			add(ErrorClassInvalid, err.Error())
			continue
		}
		if _, ok := r.adapters.Lookup(entry.Format); !ok {
			add(ErrorClassUnknownKind, fmt.Sprintf("unknown config format %q", entry.Format))
		}
		path := manifest.ResolvePath(r.root, entry.File)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			add(ErrorClassNotFound, "target file does not exist: "+path)
		}
	}
	return problems
}

// ValidatePlugins reports records that would fail before being resolved:
// invalid records and unknown origins.
func (r *Reconciler) ValidatePlugins(records []manifest.PluginRecord) []Problem {
	var problems []Problem
	for i := range records {
		record := &records[i]
		if err := record.Validate(); err != nil {
			problems = append(problems, Problem{Kind: KindPlugin, Index: i, Name: record.Name, Class: ErrorClassInvalid, Message: err.Error()})
			continue
		}
		if _, ok := r.resolvers.Lookup(record.OriginOrDefault()); !ok {
			problems = append(problems, Problem{
				Kind:    KindPlugin,
				Index:   i,
				Name:    record.Name,
				Class:   ErrorClassUnknownKind,
				Message: fmt.Sprintf("unknown plugin origin %q", record.OriginOrDefault()),
			})
		}
	}
	return problems
}
