package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
)

// PatternMatcher filters file names by include and exclude patterns. Each
// pattern is tried as a glob against the base name and, when it compiles, as a
// regular expression against the whole name.
type PatternMatcher struct {
	includeGlobs []string
	includeRegex []*regexp.Regexp
	excludeGlobs []string
	excludeRegex []*regexp.Regexp
}

func NewPatternMatcher(includePatterns, excludePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		includeGlobs: append([]string(nil), includePatterns...),
		includeRegex: compileRegex(includePatterns),
		excludeGlobs: append([]string(nil), excludePatterns...),
		excludeRegex: compileRegex(excludePatterns),
	}
}

// ShouldInclude reports whether name passes the include list (when one is set)
// and is not matched by the exclude list.
func (m *PatternMatcher) ShouldInclude(name string) bool {
	if m == nil {
		return true
	}
	if len(m.includeGlobs) > 0 && !m.matches(name, m.includeGlobs, m.includeRegex) {
		return false
	}
	if len(m.excludeGlobs) > 0 && m.matches(name, m.excludeGlobs, m.excludeRegex) {
		return false
	}
	return true
}

func (m *PatternMatcher) matches(name string, globs []string, regexes []*regexp.Regexp) bool {
	base := filepath.Base(name)
	for _, pattern := range globs {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	for _, re := range regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// ValidatePatterns returns an error for the first pattern that is neither a
// valid glob nor a valid regular expression.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); !errors.Is(err, filepath.ErrBadPattern) {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func compileRegex(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}
