// Package output writes rendered rule bundles into the output directory and
// keeps run metrics.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"asrgen/logger"
	"asrgen/rules"
	"asrgen/utils"
)

const (
	DefaultRuleExt  = "yar"
	DefaultSigmaExt = "yml"

	rulesSuffix    = "_rules"
	sigmaSuffix    = "_sigma"
	metadataSuffix = "_metadata.json"

	filePerm = 0644
)

type Metrics struct {
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	TotalFiles       int    `json:"total_files"`
	FilesProcessed   int    `json:"files_processed"`
	FilesDegraded    int    `json:"files_degraded"`
	FilesFailed      int    `json:"files_failed"`
	ArtifactsWritten int    `json:"artifacts_written"`
}

// Options selects the output directory and artifact extensions.
type Options struct {
	Dir      string
	RuleExt  string
	SigmaExt string
}

// Writer is safe for concurrent use. Each WriteBundle call touches only the
// files of its own stem.
type Writer struct {
	mu       sync.Mutex
	dir      string
	ruleExt  string
	sigmaExt string
	metrics  *Metrics
}

func New(opts Options, m *Metrics) (*Writer, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output directory %s is not a directory", opts.Dir)
	}
	if m == nil {
		m = &Metrics{}
	}
	if m.StartTime == "" {
		m.StartTime = time.Now().Format(time.RFC3339)
	}
	return &Writer{
		dir:      opts.Dir,
		ruleExt:  extOrDefault(opts.RuleExt, DefaultRuleExt),
		sigmaExt: extOrDefault(opts.SigmaExt, DefaultSigmaExt),
		metrics:  m,
	}, nil
}

func extOrDefault(ext, def string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return def
	}
	return ext
}

// Stem returns filename without its final extension. A dot in first or last
// position does not start an extension, so ".profile" and "notes." are kept
// whole.
func Stem(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i > 0 && i < len(filename)-1 {
		return filename[:i]
	}
	return filename
}

// Paths returns the rule, sigma and metadata paths for the source filename.
func (w *Writer) Paths(filename string) (string, string, string) {
	stem := Stem(filename)
	return filepath.Join(w.dir, stem+rulesSuffix+"."+w.ruleExt),
		filepath.Join(w.dir, stem+sigmaSuffix+"."+w.sigmaExt),
		filepath.Join(w.dir, stem+metadataSuffix)
}

// WriteBundle writes the non-empty artifacts of b and returns the written
// paths in rule, sigma, metadata order.
func (w *Writer) WriteBundle(filename string, b rules.Bundle) ([]string, error) {
	stem := Stem(filename)
	var written []string

	if b.Yara != "" {
		path, err := w.writeArtifact(stem+rulesSuffix+"."+w.ruleExt, []byte(b.Yara))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if b.Sigma != "" {
		path, err := w.writeArtifact(stem+sigmaSuffix+"."+w.sigmaExt, []byte(b.Sigma))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if b.Metadata != nil {
		data, err := jsonMarshalIndent(b.Metadata, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encode metadata for %s: %w", filename, err)
		}
		path, err := w.writeArtifact(stem+metadataSuffix, append(data, '\n'))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.mu.Lock()
	w.metrics.ArtifactsWritten += len(written)
	w.mu.Unlock()
	return written, nil
}

func (w *Writer) writeArtifact(name string, data []byte) (string, error) {
	path, err := utils.JoinWithin(w.dir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	logger.Debugf("Wrote %s", path)
	return path, nil
}

func (w *Writer) SetTotal(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.TotalFiles = n
}

func (w *Writer) IncrementProcessed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.FilesProcessed++
}

// IncrementDegraded counts files written with a fallback rule or a failed hash.
func (w *Writer) IncrementDegraded() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.FilesDegraded++
}

func (w *Writer) IncrementFailed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.FilesFailed++
}

// Metrics returns a copy of the current counters.
func (w *Writer) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.metrics
}

// Close stamps the end time and logs the run summary.
func (w *Writer) Close() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.EndTime = time.Now().Format(time.RFC3339)
	m := *w.metrics
	logger.WithField("output_dir", w.dir).Infof(
		"Processed %d of %d files (%d degraded, %d failed), wrote %d files",
		m.FilesProcessed, m.TotalFiles, m.FilesDegraded, m.FilesFailed, m.ArtifactsWritten)
	return m
}
