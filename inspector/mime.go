package inspector

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/h2non/filetype"
)

const (
	mimeUnknown = "unknown"
	mimeEmpty   = "inode/x-empty"
)

// detectMimeType guesses a MIME label from the leading bytes of a file.
// Magic-number formats are matched first; text-like formats without a
// signature fall through to content sniffing.
func detectMimeType(head []byte) string {
	if len(head) == 0 {
		return mimeEmpty
	}
	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	detected := mimetype.Detect(head)
	if detected == nil {
		return mimeUnknown
	}
	value, _, _ := strings.Cut(detected.String(), ";")
	value = strings.TrimSpace(value)
	if value == "" {
		return mimeUnknown
	}
	return value
}
