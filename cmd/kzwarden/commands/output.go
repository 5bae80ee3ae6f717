package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

// printReports writes the reports as JSON or as a short text summary.
func printReports(w io.Writer, reports ...*engine.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	for _, r := range reports {
		fmt.Fprintln(w, r.Summary())
		for _, item := range r.Items {
			switch item.Status {
			case engine.ItemFailed:
				fmt.Fprintf(w, "  FAILED  %s %s [%s]: %s\n", item.Kind, item.Name, item.ErrorClass, item.Error)
			case engine.ItemPending:
				fmt.Fprintf(w, "  PENDING %s %s -> %s\n", item.Name, displayTag(item.PreviousTag), item.Tag)
			case engine.ItemUpdated:
				fmt.Fprintf(w, "  UPDATED %s %s -> %s\n", item.Name, displayTag(item.PreviousTag), item.Tag)
			}
		}
	}
	return nil
}

func displayTag(tag string) string {
	if tag == "" {
		return "(none)"
	}
	return tag
}

// reportsError returns an error when any report did not fully succeed.
func reportsError(reports ...*engine.Report) error {
	failed := 0
	for _, r := range reports {
		failed += len(r.Failures())
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d item(s) failed", failed)
	}
	return nil
}
