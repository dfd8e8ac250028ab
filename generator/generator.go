// Package generator drives a run: it lists the input directory and turns every
// file into a rule bundle on disk.
package generator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"asrgen/config"
	"asrgen/fuzzy"
	"asrgen/hasher"
	"asrgen/indicator"
	"asrgen/inspector"
	"asrgen/logger"
	"asrgen/output"
	"asrgen/rules"
	"asrgen/tracing"
	"asrgen/utils"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

type fileTask struct {
	path string
	// name is the UTF-8 display name used in rules and output file names.
	name string
}

var computeMD5 = hasher.ComputeMD5

// Result summarises a finished run.
type Result struct {
	Metrics output.Metrics
	// Failures holds the per-file errors that prevented output, plus degraded
	// files (hash or read failures) that still produced a basic bundle.
	Failures []*FileError
}

type Generator struct {
	cfg       *config.Config
	inspector *inspector.Inspector
	renderer  *rules.Renderer
	matcher   *utils.PatternMatcher
	fuzzers   []fuzzy.Hasher
	// progressOut receives the progress bar; nil means stderr.
	progressOut io.Writer

	mu       sync.Mutex
	failures []*FileError
}

// Option customises a Generator.
type Option func(*Generator)

// WithProgressWriter redirects the progress bar.
func WithProgressWriter(w io.Writer) Option {
	return func(g *Generator) { g.progressOut = w }
}

// WithRenderer replaces the renderer built from the config.
func WithRenderer(r *rules.Renderer) Option {
	return func(g *Generator) { g.renderer = r }
}

func New(cfg *config.Config, opts ...Option) (*Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	extractor := indicator.NewExtractor()
	g := &Generator{
		cfg:       cfg,
		inspector: inspector.New(extractor),
		matcher:   utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns),
	}
	if cfg.FuzzyHash {
		for _, name := range cfg.FuzzyAlgorithms {
			h, ok := fuzzy.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("unsupported fuzzy algorithm: %s", name)
			}
			g.fuzzers = append(g.fuzzers, h)
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.renderer == nil {
		g.renderer = rules.NewRenderer(rules.Options{
			Author:        cfg.Author,
			SigmaIDFormat: cfg.SigmaIDFormat,
			Extractor:     extractor,
			Read: inspector.ReadOptions{
				Mode:        cfg.ContentReadMode,
				MaxBytes:    cfg.MaxContentBytes,
				MmapMinSize: cfg.MmapMinSize,
			},
		})
	}
	return g, nil
}

// Run processes every eligible file in the input directory. Only a missing
// input directory or an uncreatable output directory fail the run; per-file
// problems are logged, counted and reported in the Result.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	info, err := os.Stat(g.cfg.InputDir)
	if err != nil || !info.IsDir() {
		return Result{}, &FileError{Kind: KindFatal, Path: g.cfg.InputDir, Err: ErrInputDirMissing}
	}
	if err := os.MkdirAll(g.cfg.OutputDir, 0755); err != nil {
		return Result{}, &FileError{Kind: KindFatal, Path: g.cfg.OutputDir, Err: err}
	}
	w, err := output.New(output.Options{
		Dir:      g.cfg.OutputDir,
		RuleExt:  g.cfg.RuleExt,
		SigmaExt: g.cfg.SigmaExt,
	}, nil)
	if err != nil {
		return Result{}, &FileError{Kind: KindFatal, Path: g.cfg.OutputDir, Err: err}
	}

	tasks, err := g.listFiles()
	if err != nil {
		return Result{}, &FileError{Kind: KindFatal, Path: g.cfg.InputDir, Err: err}
	}
	w.SetTotal(len(tasks))
	logger.Infof("Found %d files in %s", len(tasks), g.cfg.InputDir)

	bar := g.newProgressBar(len(tasks))

	var limiter *rate.Limiter
	if g.cfg.MaxFilesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.cfg.MaxFilesPerSecond), g.cfg.MaxFilesPerSecond)
	}

	workers := g.cfg.ConcurrencyLevel
	if workers < 1 {
		workers = 1
	}
	filesChan := make(chan fileTask, workers)
	progressCh := make(chan int, max(workers*4, 64))

	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	go func() {
		defer close(filesChan)
		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case filesChan <- task:
			}
		}
	}()

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range filesChan {
				if ctx.Err() != nil {
					return
				}
				g.handleFile(ctx, task, w)
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()
	_ = bar.Finish()

	result := Result{Metrics: w.Close(), Failures: g.takeFailures()}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("generation interrupted: %w", err)
	}
	return result, nil
}

// listFiles returns the regular files directly inside the input directory
// that pass the include and exclude patterns, in name order.
func (g *Generator) listFiles() ([]fileTask, error) {
	entries, err := os.ReadDir(g.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	tasks := make([]fileTask, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(g.cfg.InputDir, entry.Name())
		if !entry.Type().IsRegular() {
			if entry.IsDir() {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		name := displayName(entry.Name())
		if !g.matcher.ShouldInclude(name) {
			logger.Debugf("Skipping %s: filtered by patterns", name)
			continue
		}
		tasks = append(tasks, fileTask{path: path, name: name})
	}
	return tasks, nil
}

// displayName replaces invalid UTF-8 in a directory entry name so that rule
// text, metadata and output file names all carry the same name.
func displayName(raw string) string {
	name := strings.ToValidUTF8(raw, "\uFFFD")
	if name != raw {
		logger.Warnf("File name %q is not valid UTF-8; using %s", raw, name)
	}
	return name
}

func (g *Generator) handleFile(ctx context.Context, task fileTask, w *output.Writer) {
	degraded, err := g.processFile(ctx, task, w)
	if err != nil {
		w.IncrementFailed()
		g.record(err)
		logger.WithField("kind", err.Kind).Errorf("Error processing %s: %v", task.name, err.Err)
		return
	}
	w.IncrementProcessed()
	if degraded {
		w.IncrementDegraded()
	}
	logger.Infof("Successfully generated rules for %s", task.name)
}

// processFile runs one file through the pipeline. A degraded file still
// produced output; a returned error means it produced none.
func (g *Generator) processFile(ctx context.Context, task fileTask, w *output.Writer) (bool, *FileError) {
	ctx, endTask := tracing.StartTask(ctx, "process_file")
	defer endTask()
	tracing.Log(ctx, "file", task.name)

	endRegion := tracing.StartRegion(ctx, "inspect")
	record := g.inspector.Inspect(task.path)
	endRegion()

	degraded := false
	hash, err := computeMD5(task.path)
	if err != nil {
		hash = hasher.FailedSentinel
		degraded = true
		g.warn(&FileError{Kind: KindHash, Path: task.path, Err: err})
	}

	tlshDigest := g.fuzzyDigest(task.path, record)

	endRegion = tracing.StartRegion(ctx, "render")
	bundle, err := g.renderer.Render(rules.Input{
		FileName: task.name,
		Path:     task.path,
		Record:   record,
		Hash:     hash,
		TLSH:     tlshDigest,
	})
	endRegion()
	if err != nil {
		return degraded, &FileError{Kind: KindRender, Path: task.path, Err: err}
	}
	if bundle.ReadErr != nil {
		degraded = true
		g.warn(&FileError{Kind: KindIO, Path: task.path, Err: bundle.ReadErr})
	}
	if bundle.Lossy {
		logger.WithField("kind", KindDecode).Debugf("Dropped invalid UTF-8 in %s", task.name)
	}

	endRegion = tracing.StartRegion(ctx, "write")
	_, err = w.WriteBundle(task.name, bundle)
	endRegion()
	if err != nil {
		return degraded, &FileError{Kind: KindIO, Path: task.path, Err: err}
	}
	return degraded, nil
}

// fuzzyDigest returns the first digest a configured fuzzy hasher produces.
func (g *Generator) fuzzyDigest(path string, record inspector.FileRecord) string {
	if len(g.fuzzers) == 0 {
		return ""
	}
	if g.cfg.FuzzyMaxSize > 0 && record.Size > g.cfg.FuzzyMaxSize {
		return ""
	}
	for _, h := range g.fuzzers {
		digest, err := h.HashFile(path)
		if err != nil {
			logger.Debugf("%s digest unavailable for %s: %v", h.Name(), path, err)
			continue
		}
		return digest
	}
	return ""
}

func (g *Generator) warn(fe *FileError) {
	g.record(fe)
	logger.WithField("kind", fe.Kind).Warnf("Degraded processing of %s: %v", fe.Path, fe.Err)
}

func (g *Generator) record(fe *FileError) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, fe)
}

func (g *Generator) takeFailures() []*FileError {
	g.mu.Lock()
	defer g.mu.Unlock()
	failures := g.failures
	g.failures = nil
	return failures
}

func (g *Generator) newProgressBar(total int) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription("Generating rules"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetVisibility(g.cfg.Progress),
		progressbar.OptionFullWidth(),
	}
	if g.progressOut != nil {
		opts = append(opts, progressbar.OptionSetWriter(g.progressOut))
	}
	return progressbar.NewOptions(total, opts...)
}
