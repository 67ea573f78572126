package common

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ansiRegex matches ANSI escape sequences (colors, cursor movement, etc.)
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// StripANSI removes ANSI escape codes from a string.
// Useful for parsing CLI output that may contain terminal formatting.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// DecodeOutput turns raw device bytes into text. Invalid UTF-8 and control
// characters other than newline and tab are dropped, never reported.
func DecodeOutput(raw string) string {
	s := StripANSI(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if utf8.ValidString(s) && !strings.ContainsFunc(s, isDroppable) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if isDroppable(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDroppable(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}

// Lines splits decoded output into lines with trailing whitespace removed
func Lines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return lines
}
