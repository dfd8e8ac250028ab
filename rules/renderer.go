// Package rules renders the pattern rule, log-detection rule and metadata
// sidecar for one inspected file.
package rules

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"asrgen/indicator"
	"asrgen/inspector"
	"asrgen/logger"
)

const (
	DefaultAuthor      = "Fariba Mohammaditabar"
	DefaultDescription = "Automatically generated security rules"

	csvSuffix   = ".csv"
	csvMimeType = "text/csv"
)

// Kind is the rendering branch a bundle came from.
type Kind string

const (
	KindText  Kind = "text"
	KindCSV   Kind = "csv"
	KindBasic Kind = "basic"
)

// Input is everything the renderer needs about one file.
type Input struct {
	FileName string
	Path     string
	Record   inspector.FileRecord
	Hash     string
	TLSH     string
}

// Bundle is the rendered output for one file.
type Bundle struct {
	Kind     Kind
	Yara     string
	Sigma    string
	Metadata *Metadata
	// ReadErr is the content read failure that forced the basic branch.
	ReadErr error
	// Lossy is set when invalid UTF-8 was dropped before the indicator scan.
	Lossy bool
}

// Options configures a Renderer.
type Options struct {
	Author        string
	SigmaIDFormat string
	Read          inspector.ReadOptions
	// Reader loads file content for the text branch; nil means
	// inspector.ReadContent.
	Reader        func(path string, opts inspector.ReadOptions) ([]byte, error)
	Extractor     *indicator.Extractor
	Now           func() time.Time
}

// Renderer turns inspection results into rule bundles. Authorship fields,
// including the creation timestamp, are fixed when the Renderer is built.
type Renderer struct {
	author        string
	created       string
	sigmaIDFormat string
	read          inspector.ReadOptions
	reader        func(string, inspector.ReadOptions) ([]byte, error)
	extractor     *indicator.Extractor
	validator     *MetadataValidator
	now           func() time.Time
}

func NewRenderer(opts Options) *Renderer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	author := strings.TrimSpace(opts.Author)
	if author == "" {
		author = DefaultAuthor
	}
	reader := opts.Reader
	if reader == nil {
		reader = inspector.ReadContent
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = indicator.NewExtractor()
	}
	return &Renderer{
		author:        author,
		created:       now().Format(time.RFC3339),
		sigmaIDFormat: opts.SigmaIDFormat,
		read:          opts.Read,
		reader:        reader,
		extractor:     extractor,
		validator:     NewMetadataValidator(),
		now:           now,
	}
}

// Created returns the creation timestamp shared by all bundles.
func (r *Renderer) Created() string {
	return r.created
}

// Render selects the branch by filename suffix and renders the bundle.
func (r *Renderer) Render(in Input) (Bundle, error) {
	var (
		bundle Bundle
		err    error
	)
	if strings.HasSuffix(in.FileName, csvSuffix) {
		bundle, err = r.renderCSV(in)
	} else {
		bundle, err = r.renderText(in)
	}
	if err != nil {
		return Bundle{}, err
	}
	if err := r.validator.Validate(bundle.Metadata); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func (r *Renderer) renderText(in Input) (Bundle, error) {
	content, err := r.reader(in.Path, r.read)
	if err != nil {
		logger.Warnf("Error processing text file %s: %v", in.FileName, err)
		bundle, rerr := r.renderBasic(in)
		bundle.ReadErr = err
		return bundle, rerr
	}
	indicators := indicator.Strings(r.extractor.Extract(inspector.DecodeLossy(content)))
	lossy := !utf8.Valid(content)

	size := in.Record.Size
	yara, err := renderYara(yaraRule{
		Name:        Identifier("Rule_", in.FileName),
		Author:      r.author,
		Date:        r.created,
		Description: "Generated from " + in.FileName,
		FileName:    in.FileName,
		Hash:        in.Hash,
		FileType:    in.Record.FileType(),
		FileSize:    &size,
		MD5:         in.Hash,
		TLSH:        in.TLSH,
		Indicators:  indicator.Embedded(indicators),
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("render yara rule: %w", err)
	}
	bundle, err := r.finish(KindText, in, yara, indicators)
	bundle.Lossy = lossy
	return bundle, err
}

func (r *Renderer) renderCSV(in Input) (Bundle, error) {
	yara, err := renderYara(yaraRule{
		Name:        Identifier("CSV_Rule_", in.FileName),
		Author:      r.author,
		Date:        r.created,
		Description: "Basic rule for CSV file: " + in.FileName,
		FileName:    in.FileName,
		Hash:        in.Hash,
		FileType:    csvMimeType,
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("render yara rule: %w", err)
	}
	return r.finish(KindCSV, in, yara, nil)
}

func (r *Renderer) renderBasic(in Input) (Bundle, error) {
	yara, err := renderYara(yaraRule{
		Name:        Identifier("Basic_Rule_", in.FileName),
		Author:      r.author,
		Date:        r.created,
		Description: "Basic rule for " + in.FileName,
		FileName:    in.FileName,
		Hash:        in.Hash,
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("render yara rule: %w", err)
	}
	return r.finish(KindBasic, in, yara, nil)
}

func (r *Renderer) finish(kind Kind, in Input, yara string, indicators []string) (Bundle, error) {
	sigma, err := renderSigma(newSigmaRule(in.FileName, r.author, r.created, r.sigmaIDFormat))
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Kind:     kind,
		Yara:     yara,
		Sigma:    sigma,
		Metadata: r.metadata(in, indicators),
	}, nil
}

func (r *Renderer) metadata(in Input, indicators []string) *Metadata {
	if indicators == nil {
		indicators = []string{}
	}
	return &Metadata{
		Author:          r.author,
		Created:         r.created,
		Version:         RuleVersion,
		Description:     DefaultDescription,
		SourceFile:      in.FileName,
		FileSize:        in.Record.Size,
		FileType:        in.Record.FileType(),
		AnalysisDate:    r.now().Format(time.RFC3339),
		FileHash:        in.Hash,
		IndicatorsFound: indicators,
		FileTLSH:        in.TLSH,
		Status:          StatusGenerated,
	}
}
