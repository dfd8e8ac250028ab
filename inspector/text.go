package inspector

import (
	"strings"
	"unicode"
)

// sampleChars bounds the textual and binary checks to the start of the prefix.
const sampleChars = 100

// DecodeLossy decodes b as UTF-8, dropping invalid byte sequences.
func DecodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// looksTextual reports whether any of the first 100 decoded characters is printable.
func looksTextual(decoded string) bool {
	seen := 0
	for _, r := range decoded {
		if seen >= sampleChars {
			break
		}
		if unicode.IsPrint(r) {
			return true
		}
		seen++
	}
	return false
}

// looksBinary reports whether any of the first 100 raw bytes is above 127.
func looksBinary(raw []byte) bool {
	if len(raw) > sampleChars {
		raw = raw[:sampleChars]
	}
	for _, b := range raw {
		if b > 127 {
			return true
		}
	}
	return false
}
