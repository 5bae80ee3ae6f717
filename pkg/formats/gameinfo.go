package formats

import (
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kzwarden/kzwarden/pkg/engine"
	"github.com/kzwarden/kzwarden/pkg/manifest"
)

// DefaultGameInfoMarker is the gameinfo.gi line new search paths are
// inserted after.
const DefaultGameInfoMarker = "Game_LowViolence"

// GameInfoAdapter inserts entry values as lines right after the first line
// containing a marker.
type GameInfoAdapter struct {
	logger zerolog.Logger
	marker string
}

// NewGameInfoAdapter creates a gi adapter that inserts after marker.
func NewGameInfoAdapter(logger zerolog.Logger, marker string) *GameInfoAdapter {
	return &GameInfoAdapter{logger: logger, marker: marker}
}

// Format implements engine.Adapter.
func (a *GameInfoAdapter) Format() string { return FormatGameInfo }

// Apply inserts one line per entry value, in entry order, after the marker
// line. If those lines already follow the marker nothing is written.
func (a *GameInfoAdapter) Apply(path string, entries *manifest.Object) (bool, error) {
	content, err := readTarget(path, FormatGameInfo)
	if err != nil {
		return false, err
	}
	lines := splitLines(content)

	idx := -1
	for i, line := range lines {
		if strings.Contains(line, a.marker) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, engine.NewFormatMismatchError("marker not found", nil).
			WithResource(path).WithOperation(FormatGameInfo).WithDetail("marker", a.marker)
	}

	// New lines use the marker line's terminator so CRLF files stay
	// idempotent.
	term := "\n"
	if strings.HasSuffix(lines[idx], "\r\n") {
		term = "\r\n"
	}
	insert := make([]string, 0, entries.Len())
	for _, f := range entries.Fields {
		insert = append(insert, manifest.FormatScalar(f.Value)+term)
	}

	following := lines[idx+1:]
	if len(following) >= len(insert) && slices.Equal(following[:len(insert)], insert) {
		a.logger.Debug().Str("file", path).Msg("Entries already present after marker")
		return false, nil
	}

	if !strings.HasSuffix(lines[idx], "\n") {
		lines[idx] += term
	}
	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:idx+1]...)
	out = append(out, insert...)
	out = append(out, lines[idx+1:]...)

	return writeIfChanged(path, FormatGameInfo, content, strings.Join(out, ""))
}
