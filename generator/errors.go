package generator

import (
	"errors"
	"fmt"
)

// ErrInputDirMissing aborts a run before any file is processed.
var ErrInputDirMissing = errors.New("input directory does not exist")

// Kind classifies a per-file or run-level failure.
type Kind string

const (
	// KindIO is a read or write failure on one file.
	KindIO Kind = "io"
	// KindHash is a hashing failure; the file continues with the sentinel digest.
	KindHash Kind = "hash"
	// KindDecode marks content whose invalid UTF-8 was dropped. Never fatal.
	KindDecode Kind = "decode"
	// KindRender is a rendered bundle that failed validation.
	KindRender Kind = "render"
	// KindFatal stops the run.
	KindFatal Kind = "fatal"
)

// FileError ties a failure to the path it happened on.
type FileError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first FileError in err's chain, or "".
func KindOf(err error) Kind {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
