// Package sanitize cleans identifiers and labels that arrive from clients
// (MCP callers, scripts, config files) before they reach the bench, the
// record board or the archive.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxIDLength is the maximum length of a container id, in runes.
const MaxIDLength = 32

// MaxNameLength is the maximum length of a script or run name, in runes.
const MaxNameLength = 80

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
	reWhitespace          = regexp.MustCompile(`\s+`)
)

// ContainerID keeps only letters, digits, '-' and '_' of input, collapses
// repeated separators and truncates the result to MaxIDLength runes.
func ContainerID(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")

	return truncate(s, MaxIDLength)
}

// ValidContainerID reports whether id is non-empty and already clean.
func ValidContainerID(id string) bool {
	return id != "" && ContainerID(id) == id
}

// Name cleans a single-line label: control characters and markup are
// removed, whitespace runs become one space and the result is truncated to
// MaxNameLength runes.
func Name(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return truncate(s, MaxNameLength)
}

// stripControlChars removes ASCII control characters (0x00-0x1F and DEL)
// except newline and tab, which Name folds into spaces.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
