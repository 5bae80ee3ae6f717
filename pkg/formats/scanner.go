package formats

import (
	"strings"
)

// lineRule edits a single line. match sees the line without its terminator;
// replace returns the new line body for a line that matched.
type lineRule struct {
	match   func(line string) bool
	replace func(line string) string
}

// replaceFirst applies rule to the first matching line of content and
// reports whether a line matched. Line terminators ("\n" or "\r\n") are
// kept as they were.
func replaceFirst(content string, rule lineRule) (string, bool) {
	start := 0
	for start <= len(content) {
		end := strings.IndexByte(content[start:], '\n')
		var body, term string
		if end < 0 {
			body = content[start:]
		} else {
			body = content[start : start+end]
			term = "\n"
		}
		if strings.HasSuffix(body, "\r") {
			body = body[:len(body)-1]
			term = "\r" + term
		}

		if rule.match(body) {
			next := start + len(body) + len(term)
			return content[:start] + rule.replace(body) + term + content[next:], true
		}

		if end < 0 {
			break
		}
		start += end + 1
	}
	return content, false
}

// splitLines splits content after each "\n". The final element has no
// terminator only if content does not end with one; no empty trailing
// element is produced.
func splitLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

const inlineSpace = " \t\f\v"

func trimLeftSpace(s string) string {
	return strings.TrimLeft(s, inlineSpace)
}

// quotedPairRule matches `<ws>"key"<ws>"old"` and swaps old for value,
// leaving everything around the quoted payload as it was.
func quotedPairRule(key, value string) lineRule {
	quotedKey := `"` + key + `"`

	// payload returns the part of line starting at the opening quote of
	// the value, or "" if line does not match.
	payload := func(line string) string {
		s := trimLeftSpace(line)
		if !strings.HasPrefix(s, quotedKey) {
			return ""
		}
		s = trimLeftSpace(s[len(quotedKey):])
		if !strings.HasPrefix(s, `"`) || !strings.Contains(s[1:], `"`) {
			return ""
		}
		return s
	}

	return lineRule{
		match: func(line string) bool {
			return payload(line) != ""
		},
		replace: func(line string) string {
			s := payload(line)
			lead := line[:len(line)-len(s)]
			closing := strings.IndexByte(s[1:], '"') + 1
			return lead + `"` + value + `"` + s[closing+1:]
		},
	}
}

// assignmentRule matches `<ws>key<ws>=<ws><rest>` and replaces rest with
// value. The text up to and including the spacing after "=" is kept.
func assignmentRule(key, value string) lineRule {
	// rest returns the remainder after "=" and its spacing, and whether
	// line matched.
	rest := func(line string) (string, bool) {
		s := trimLeftSpace(line)
		if !strings.HasPrefix(s, key) {
			return "", false
		}
		s = trimLeftSpace(s[len(key):])
		if !strings.HasPrefix(s, "=") {
			return "", false
		}
		return trimLeftSpace(s[1:]), true
	}

	return lineRule{
		match: func(line string) bool {
			_, ok := rest(line)
			return ok
		},
		replace: func(line string) string {
			r, _ := rest(line)
			return line[:len(line)-len(r)] + value
		},
	}
}
