package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"asrgen/fuzzy"
	"asrgen/rules"
	"asrgen/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DisableProgressEnv hides the progress bar when set to a true value.
const DisableProgressEnv = "ASRGEN_DISABLE_PROGRESS"

type Config struct {
	InputDir          string   `yaml:"input_dir" json:"input_dir"`
	OutputDir         string   `yaml:"output_dir" json:"output_dir"`
	LogLevel          string   `yaml:"log_level" json:"log_level"`
	LogFile           string   `yaml:"log_file" json:"log_file"`
	Author            string   `yaml:"author" json:"author"`
	RuleExt           string   `yaml:"rule_ext" json:"rule_ext"`
	SigmaExt          string   `yaml:"sigma_ext" json:"sigma_ext"`
	SigmaIDFormat     string   `yaml:"sigma_id_format" json:"sigma_id_format"`
	IncludePatterns   []string `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns   []string `yaml:"exclude_patterns" json:"exclude_patterns"`
	ConcurrencyLevel  int      `yaml:"concurrency_level" json:"concurrency_level"`
	MaxFilesPerSecond int      `yaml:"max_files_per_second" json:"max_files_per_second"`
	ContentReadMode   string   `yaml:"content_read_mode" json:"content_read_mode"`
	MaxContentBytes   int64    `yaml:"max_content_bytes" json:"max_content_bytes"`
	MmapMinSize       int64    `yaml:"mmap_min_size" json:"mmap_min_size"`
	FuzzyHash         bool     `yaml:"fuzzy_hash" json:"fuzzy_hash"`
	FuzzyAlgorithms   []string `yaml:"fuzzy_algorithms" json:"fuzzy_algorithms"`
	FuzzyMaxSize      int64    `yaml:"fuzzy_max_size" json:"fuzzy_max_size"`
	Progress          bool     `yaml:"progress" json:"progress"`
	TraceFile         string   `yaml:"trace_file" json:"trace_file"`
	ConfigFile        string   `yaml:"-" json:"-"`
}

func Default() *Config {
	return &Config{
		InputDir:         "new_input_files",
		OutputDir:        "output_rules",
		LogLevel:         "info",
		LogFile:          "asr_generator.log",
		Author:           rules.DefaultAuthor,
		RuleExt:          "yar",
		SigmaExt:         "yml",
		SigmaIDFormat:    "md5",
		IncludePatterns:  []string{},
		ExcludePatterns:  []string{},
		ConcurrencyLevel: 1,
		ContentReadMode:  "auto",
		MmapMinSize:      128 * 1024,
		FuzzyAlgorithms:  []string{},
		FuzzyMaxSize:     20 * 1024 * 1024,
		Progress:         true,
		TraceFile:        "trace.out",
	}
}

// Loader owns the command-line flags and merges them over defaults and the
// optional config file.
type Loader struct {
	fs    *pflag.FlagSet
	flags *Config
	// list flags are parsed from comma-separated strings
	include string
	exclude string
	fuzzy   string
}

// NewLoader registers every configuration flag on fs.
func NewLoader(fs *pflag.FlagSet) *Loader {
	def := Default()
	l := &Loader{fs: fs, flags: Default()}
	f := l.flags

	fs.StringVarP(&f.InputDir, "input", "i", def.InputDir, "Directory holding the files to convert.")
	fs.StringVarP(&f.OutputDir, "output", "o", def.OutputDir, "Directory receiving generated rules.")
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "YAML or JSON configuration file.")
	fs.StringVar(&f.LogLevel, "log-level", def.LogLevel, "Log level: debug, info, warn, error, fatal, or panic.")
	fs.StringVar(&f.LogFile, "log-file", def.LogFile, "File that mirrors console logging (empty disables).")
	fs.StringVar(&f.Author, "author", def.Author, "Author recorded in every generated rule.")
	fs.StringVar(&f.RuleExt, "rule-ext", def.RuleExt, "Pattern rule extension: yar or yara.")
	fs.StringVar(&f.SigmaExt, "sigma-ext", def.SigmaExt, "Sigma rule extension: yml or yaml.")
	fs.StringVar(&f.SigmaIDFormat, "sigma-id-format", def.SigmaIDFormat, "Sigma rule id format: md5 or uuid.")
	fs.StringVar(&l.include, "include", "", "Comma-separated include patterns (glob or regex).")
	fs.StringVar(&l.exclude, "exclude", "", "Comma-separated exclude patterns (glob or regex).")
	fs.IntVar(&f.ConcurrencyLevel, "concurrency", def.ConcurrencyLevel, "Number of files processed at once; 1 keeps listing order.")
	fs.IntVar(&f.MaxFilesPerSecond, "max-files-per-second", def.MaxFilesPerSecond, "Upper bound on files started per second (0 means unlimited).")
	fs.StringVar(&f.ContentReadMode, "content-read-mode", def.ContentReadMode, "Content read mode: auto, stream, or mmap.")
	fs.Int64Var(&f.MaxContentBytes, "max-content-bytes", def.MaxContentBytes, "Maximum bytes scanned for indicators per file (0 means unlimited).")
	fs.Int64Var(&f.MmapMinSize, "mmap-min-size", def.MmapMinSize, "Smallest file memory-mapped in auto mode.")
	fs.BoolVar(&f.FuzzyHash, "fuzzy-hash", def.FuzzyHash, "Add a TLSH similarity digest to rules and metadata.")
	fs.StringVar(&l.fuzzy, "fuzzy-algorithms", "", "Comma-separated fuzzy hash algorithms (default: tlsh).")
	fs.Int64Var(&f.FuzzyMaxSize, "fuzzy-max-size", def.FuzzyMaxSize, "Largest file fuzzy hashed (0 means unlimited).")
	fs.BoolVar(&f.Progress, "progress", def.Progress, "Show a progress bar.")
	fs.StringVar(&f.TraceFile, "trace-file", def.TraceFile, "Runtime trace output for binaries built with the trace tag.")
	return l
}

// Load returns the effective configuration: defaults, then the config file,
// then flags the user set explicitly.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(l.flags.ConfigFile); path != "" {
		cfg.ConfigFile = path
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	l.fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputDir = l.flags.InputDir
		case "output":
			cfg.OutputDir = l.flags.OutputDir
		case "log-level":
			cfg.LogLevel = l.flags.LogLevel
		case "log-file":
			cfg.LogFile = l.flags.LogFile
		case "author":
			cfg.Author = l.flags.Author
		case "rule-ext":
			cfg.RuleExt = l.flags.RuleExt
		case "sigma-ext":
			cfg.SigmaExt = l.flags.SigmaExt
		case "sigma-id-format":
			cfg.SigmaIDFormat = l.flags.SigmaIDFormat
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(l.include)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(l.exclude)
		case "concurrency":
			cfg.ConcurrencyLevel = l.flags.ConcurrencyLevel
		case "max-files-per-second":
			cfg.MaxFilesPerSecond = l.flags.MaxFilesPerSecond
		case "content-read-mode":
			cfg.ContentReadMode = l.flags.ContentReadMode
		case "max-content-bytes":
			cfg.MaxContentBytes = l.flags.MaxContentBytes
		case "mmap-min-size":
			cfg.MmapMinSize = l.flags.MmapMinSize
		case "fuzzy-hash":
			cfg.FuzzyHash = l.flags.FuzzyHash
		case "fuzzy-algorithms":
			cfg.FuzzyAlgorithms = parseCommaSeparated(l.fuzzy)
		case "fuzzy-max-size":
			cfg.FuzzyMaxSize = l.flags.FuzzyMaxSize
		case "progress":
			cfg.Progress = l.flags.Progress
		case "trace-file":
			cfg.TraceFile = l.flags.TraceFile
		}
	})

	if progressDisabledByEnv() {
		cfg.Progress = false
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) loadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid config file format: %w", err)
	}
	return nil
}

func (cfg *Config) normalize() {
	cfg.InputDir = strings.TrimSpace(cfg.InputDir)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.RuleExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.RuleExt), "."))
	cfg.SigmaExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.SigmaExt), "."))
	cfg.SigmaIDFormat = strings.ToLower(strings.TrimSpace(cfg.SigmaIDFormat))
	cfg.ContentReadMode = strings.ToLower(strings.TrimSpace(cfg.ContentReadMode))
	if cfg.ContentReadMode == "" {
		cfg.ContentReadMode = "auto"
	}
	if cfg.SigmaIDFormat == "" {
		cfg.SigmaIDFormat = "md5"
	}
	cfg.FuzzyAlgorithms = normalizeAlgorithms(cfg.FuzzyAlgorithms)
	if cfg.FuzzyHash && len(cfg.FuzzyAlgorithms) == 0 {
		cfg.FuzzyAlgorithms = []string{"tlsh"}
	}
	if len(cfg.FuzzyAlgorithms) > 0 {
		cfg.FuzzyHash = true
	}
}

func (cfg *Config) validate() error {
	if cfg.InputDir == "" {
		return fmt.Errorf("input directory must be set")
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output directory must be set")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.RuleExt != "yar" && cfg.RuleExt != "yara" {
		return fmt.Errorf("invalid rule-ext value: %s", cfg.RuleExt)
	}
	if cfg.SigmaExt != "yml" && cfg.SigmaExt != "yaml" {
		return fmt.Errorf("invalid sigma-ext value: %s", cfg.SigmaExt)
	}
	if cfg.SigmaIDFormat != "md5" && cfg.SigmaIDFormat != "uuid" {
		return fmt.Errorf("invalid sigma-id-format value: %s", cfg.SigmaIDFormat)
	}
	if cfg.ConcurrencyLevel < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if cfg.MaxFilesPerSecond < 0 {
		return fmt.Errorf("max-files-per-second must be zero or positive")
	}
	if cfg.ContentReadMode != "stream" && cfg.ContentReadMode != "mmap" && cfg.ContentReadMode != "auto" {
		return fmt.Errorf("invalid content-read-mode value: %s", cfg.ContentReadMode)
	}
	if cfg.MaxContentBytes < 0 {
		return fmt.Errorf("max-content-bytes must be zero or positive")
	}
	if cfg.MmapMinSize < 0 {
		return fmt.Errorf("mmap-min-size must be zero or positive")
	}
	if cfg.FuzzyMaxSize < 0 {
		return fmt.Errorf("fuzzy-max-size must be zero or positive")
	}
	for _, name := range cfg.FuzzyAlgorithms {
		if _, ok := fuzzy.Lookup(name); !ok {
			return fmt.Errorf("unsupported fuzzy algorithm: %s (available: %s)", name, strings.Join(fuzzy.Available(), ", "))
		}
	}
	if err := utils.ValidatePatterns(cfg.IncludePatterns); err != nil {
		return fmt.Errorf("include patterns: %w", err)
	}
	if err := utils.ValidatePatterns(cfg.ExcludePatterns); err != nil {
		return fmt.Errorf("exclude patterns: %w", err)
	}
	return nil
}

func progressDisabledByEnv() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(DisableProgressEnv)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func normalizeAlgorithms(algs []string) []string {
	seen := make(map[string]struct{}, len(algs))
	result := make([]string, 0, len(algs))
	for _, alg := range algs {
		name := strings.ToLower(strings.TrimSpace(alg))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}
