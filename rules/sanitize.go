package rules

import (
	"fmt"
	"strings"
)

// MaxIdentifierLength is the longest rule identifier the compiler accepts.
const MaxIdentifierLength = 128

// Sanitize replaces every character outside [A-Za-z0-9_] with an underscore.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isWordChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Identifier joins prefix and the sanitized filename, truncated to
// MaxIdentifierLength.
func Identifier(prefix, filename string) string {
	id := Sanitize(prefix + filename)
	if len(id) > MaxIdentifierLength {
		id = id[:MaxIdentifierLength]
	}
	return id
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Quote renders s as a double-quoted rule string literal. Backslash and double
// quote are escaped, and bytes outside printable ASCII become \xHH.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c == '"':
			b.WriteString(`\"`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\n':
			b.WriteString(`\n`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
