// Package inspector collects the per-file attributes that feed rule rendering.
package inspector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asrgen/indicator"
	"asrgen/logger"
)

// PrefixBytes bounds the content analysed during inspection.
const PrefixBytes = 4096

// FileRecord holds what inspection learned about one file. A record with
// an empty Name is the empty record: unknown type, no indicators.
type FileRecord struct {
	Path       string
	Name       string
	Extension  string
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
	BirthTime  time.Time
	MimeType   string
	// Textual and Binary describe the content prefix only.
	Textual bool
	Binary  bool
	// Indicators come from the 4 KiB prefix, not the full content.
	Indicators []string
}

// Empty reports whether inspection failed for this record.
func (r FileRecord) Empty() bool {
	return r.Name == ""
}

// FileType returns the detected MIME label, or "unknown".
func (r FileRecord) FileType() string {
	if r.MimeType == "" {
		return mimeUnknown
	}
	return r.MimeType
}

// Inspector analyses files. The zero value is not usable; use New.
type Inspector struct {
	extractor   *indicator.Extractor
	prefixBytes int
}

func New(extractor *indicator.Extractor) *Inspector {
	if extractor == nil {
		extractor = indicator.NewExtractor()
	}
	return &Inspector{extractor: extractor, prefixBytes: PrefixBytes}
}

// Inspect returns the record for path. Any failure is logged and yields the
// empty record.
func (in *Inspector) Inspect(path string) FileRecord {
	record, err := in.inspect(path)
	if err != nil {
		logger.Errorf("Error analyzing file %s: %v", path, err)
		return FileRecord{Path: path}
	}
	return record
}

func (in *Inspector) inspect(path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return FileRecord{}, fmt.Errorf("%s is a directory", path)
	}

	record := FileRecord{
		Path:      path,
		Name:      info.Name(),
		Extension: strings.ToLower(filepath.Ext(info.Name())),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}
	if ts, err := statTimes(path); err == nil {
		record.ModTime = ts.ModTime
		record.AccessTime = ts.AccessTime
		record.ChangeTime = ts.ChangeTime
		record.BirthTime = ts.BirthTime
	} else {
		logger.Debugf("File times unavailable for %s: %v", path, err)
	}

	prefix, err := readPrefix(path, in.prefixBytes)
	if err != nil {
		return FileRecord{}, fmt.Errorf("read prefix: %w", err)
	}
	decoded := DecodeLossy(prefix)
	record.MimeType = detectMimeType(prefix)
	record.Textual = looksTextual(decoded)
	record.Binary = looksBinary(prefix)
	record.Indicators = indicator.Strings(in.extractor.Extract(decoded))
	return record, nil
}
