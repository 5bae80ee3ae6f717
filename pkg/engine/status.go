package engine

import (
	"fmt"
	"time"
)

// RunStatus represents the overall outcome of a reconciliation phase.
type RunStatus string

const (
	// RunStatusSucceeded indicates every item reached its desired state.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the phase could not start, or every item
	// failed.
	RunStatusFailed RunStatus = "failed"

	// RunStatusPartial indicates some items failed and some did not.
	RunStatusPartial RunStatus = "partial"
)

// ItemStatus is the outcome for one manifest item.
type ItemStatus string

const (
	// ItemApplied indicates a config file was rewritten.
	ItemApplied ItemStatus = "applied"

	// ItemUnchanged indicates a config file already held the entries.
	ItemUnchanged ItemStatus = "unchanged"

	// ItemUpdated indicates a plugin was installed at a new tag.
	ItemUpdated ItemStatus = "updated"

	// ItemUpToDate indicates the resolved tag equals the recorded tag.
	ItemUpToDate ItemStatus = "up_to_date"

	// ItemPending indicates a newer tag exists but was not installed
	// because the run only checked.
	ItemPending ItemStatus = "pending"

	// ItemFailed indicates the item was left at its previous state.
	ItemFailed ItemStatus = "failed"
)

// Item kinds.
const (
	KindConfig = "config"
	KindPlugin = "plugin"
)

// ItemResult records what happened to one manifest item.
type ItemResult struct {
	// Kind is KindConfig or KindPlugin.
	Kind string `json:"kind"`

	// Name is the target file for configs and the plugin name for plugins.
	Name string `json:"name"`

	// Format is the config format or plugin origin.
	Format string `json:"format,omitempty"`

	// Status is the outcome.
	Status ItemStatus `json:"status"`

	// PreviousTag is the recorded tag before the run (plugins only).
	PreviousTag string `json:"previous_tag,omitempty"`

	// Tag is the resolved tag (plugins only).
	Tag string `json:"tag,omitempty"`

	// Error is the failure message when Status is ItemFailed.
	Error string `json:"error,omitempty"`

	// ErrorClass is the failure class when Status is ItemFailed.
	ErrorClass ErrorClass `json:"error_class,omitempty"`

	// Duration is how long the item took.
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the item failed.
func (r ItemResult) Failed() bool {
	return r.Status == ItemFailed
}

// Report is the outcome of one reconciliation phase.
type Report struct {
	// RunID identifies the run the phase belongs to.
	RunID string `json:"run_id"`

	// Phase is "configs", "plugins" or "check".
	Phase string `json:"phase"`

	// Status is the overall outcome.
	Status RunStatus `json:"status"`

	// Items are the per-item outcomes in manifest order.
	Items []ItemResult `json:"items"`

	// Persisted is true when the plugin manifest was written back.
	Persisted bool `json:"persisted,omitempty"`

	// Error is set when the phase failed outside any item, for example
	// when the manifest could not be loaded or saved.
	Error string `json:"error,omitempty"`

	// StartedAt is when the phase started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the phase took.
	Duration time.Duration `json:"duration"`
}

// Count returns how many items ended with status.
func (r *Report) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Failures returns the failed items.
func (r *Report) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if item.Failed() {
			out = append(out, item)
		}
	}
	return out
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%s %s: %d items", r.Phase, r.Status, len(r.Items))
	for _, st := range []ItemStatus{ItemApplied, ItemUnchanged, ItemUpdated, ItemUpToDate, ItemPending, ItemFailed} {
		if n := r.Count(st); n > 0 {
			s += fmt.Sprintf(", %d %s", n, st)
		}
	}
	if r.Error != "" {
		s += " (" + r.Error + ")"
	}
	return s
}

// finish computes Status and Duration.
func (r *Report) finish() {
	r.Duration = time.Since(r.StartedAt)
	failed := len(r.Failures())
	switch {
	case r.Error != "" && len(r.Items) == 0:
		r.Status = RunStatusFailed
	case r.Error != "":
		r.Status = RunStatusPartial
	case failed == 0:
		r.Status = RunStatusSucceeded
	case failed == len(r.Items):
		r.Status = RunStatusFailed
	default:
		r.Status = RunStatusPartial
	}
}
