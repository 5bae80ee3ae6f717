package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzwarden/kzwarden/pkg/engine"
)

func sampleReport() *engine.Report {
	return &engine.Report{
		Phase:  "plugins",
		Status: engine.RunStatusPartial,
		Items: []engine.ItemResult{
			{Kind: engine.KindPlugin, Name: "kz/cs2kz", Status: engine.ItemUpdated, PreviousTag: "1.0", Tag: "1.1"},
			{Kind: engine.KindPlugin, Name: "mmsource", Status: engine.ItemPending, Tag: "git1350"},
			{Kind: engine.KindPlugin, Name: "broken", Status: engine.ItemFailed, ErrorClass: engine.ErrorClassTransport, Error: "boom"},
			{Kind: engine.KindPlugin, Name: "steady", Status: engine.ItemUpToDate, Tag: "2.0"},
		},
	}
}

func TestPrintReportsText(t *testing.T) {
	jsonOutput = false
	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "plugins partial: 4 items")
	assert.Contains(t, out, "  UPDATED kz/cs2kz 1.0 -> 1.1\n")
	assert.Contains(t, out, "  PENDING mmsource (none) -> git1350\n")
	assert.Contains(t, out, "  FAILED  plugin broken [transport]: boom\n")
	assert.NotContains(t, out, "steady")
}

func TestPrintReportsJSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, sampleReport()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "plugins", decoded[0]["phase"])
	assert.Len(t, decoded[0]["items"], 4)
}

func TestReportsError(t *testing.T) {
	tests := []struct {
		name    string
		reports []*engine.Report
		wantErr bool
	}{
		{name: "clean", reports: []*engine.Report{{Items: []engine.ItemResult{{Status: engine.ItemApplied}}}}},
		{name: "item failure", reports: []*engine.Report{sampleReport()}, wantErr: true},
		{name: "phase error", reports: []*engine.Report{{Error: "manifest missing"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reportsError(tt.reports...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
