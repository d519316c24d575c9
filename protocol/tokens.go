package protocol

import (
	"strings"
	"unicode"
)

const (
	// Terminator ends every frame on the wire.
	Terminator = '#'

	outerDelim  = ':'
	middleDelim = ';'
	innerDelim  = ','
)

// StripTerminator removes surrounding whitespace and the trailing frame
// terminator. Stripping an already stripped frame is a no-op.
func StripTerminator(frame string) string {
	frame = strings.TrimRightFunc(frame, func(r rune) bool {
		return r == Terminator || unicode.IsSpace(r)
	})
	return strings.TrimLeftFunc(frame, unicode.IsSpace)
}

// SplitLevel splits text on delim, trims each piece and drops empty ones.
func SplitLevel(text string, delim rune) []string {
	parts := strings.Split(text, string(delim))
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func SplitOuter(text string) []string  { return SplitLevel(text, outerDelim) }
func SplitMiddle(text string) []string { return SplitLevel(text, middleDelim) }
func SplitInner(text string) []string  { return SplitLevel(text, innerDelim) }

// ShortCodeToIdentifier converts a SCREAMING_SNAKE code to the identifier
// used for failure reasons: CELL_OCCUPIED becomes CellOccupied. The first
// letter of each segment is kept as sent.
func ShortCodeToIdentifier(code string) string {
	var sb strings.Builder
	for _, word := range strings.Split(code, "_") {
		if word == "" {
			continue
		}
		sb.WriteString(word[:1])
		sb.WriteString(strings.ToLower(word[1:]))
	}
	return sb.String()
}
