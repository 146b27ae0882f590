// Package textproc cleans engine output before it is published.
package textproc

import "strings"

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '.', ',', '!', '?', '\'', '"', ' ':
		return true
	}
	return false
}

// Clean deletes every character outside [A-Za-z0-9.,!?'" ].
func Clean(text string) string {
	return strings.Map(func(r rune) rune {
		if allowed(r) {
			return r
		}
		return -1
	}, text)
}

// DedupeLines trims each line and keeps the first occurrence of every
// distinct non-empty line, joined with "\n".
func DedupeLines(text string) string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	seen := make(map[string]struct{}, len(lines))
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Process applies Clean then DedupeLines.
func Process(text string) string {
	return DedupeLines(Clean(text))
}
