// Package indicator finds naive textual indicators in decoded file content.
// The matches are illustrative metadata, not vetted threat signatures.
package indicator

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

const (
	// MaxExtracted caps the indicators collected from one piece of content.
	MaxExtracted = 5
	// MaxEmbedded caps the indicators embedded as pattern strings in a rule.
	MaxEmbedded = 3
)

type Category string

const (
	CategoryURL        Category = "URL"
	CategoryExecutable Category = "Executable"
	CategoryLibrary    Category = "Library"
	CategoryMalware    Category = "Malware reference"
	CategoryVirus      Category = "Virus reference"
	CategoryTrojan     Category = "Trojan reference"
	CategoryBackdoor   Category = "Backdoor reference"
	CategoryAdware     Category = "Adware reference"
	CategorySpyware    Category = "Spyware reference"
)

// Pattern is a lowercase substring and the category it reports.
type Pattern struct {
	Text     string
	Category Category
}

// Patterns is the fixed scan list. Extraction order follows this list, not
// the position of the match in the content.
var Patterns = []Pattern{
	{Text: "http://", Category: CategoryURL},
	{Text: "https://", Category: CategoryURL},
	{Text: ".exe", Category: CategoryExecutable},
	{Text: ".dll", Category: CategoryLibrary},
	{Text: "malware", Category: CategoryMalware},
	{Text: "virus", Category: CategoryVirus},
	{Text: "trojan", Category: CategoryTrojan},
	{Text: "backdoor", Category: CategoryBackdoor},
	{Text: "adware", Category: CategoryAdware},
	{Text: "spyware", Category: CategorySpyware},
}

// Indicator is one pattern found in content.
type Indicator struct {
	Category Category
	Pattern  string
}

func (i Indicator) String() string {
	return string(i.Category) + ": " + i.Pattern
}

// Extractor scans content for Patterns. It is safe for concurrent use.
type Extractor struct {
	patterns []Pattern
	matcher  *ahocorasick.Matcher
	limit    int
}

// NewExtractor builds an extractor over Patterns capped at MaxExtracted.
func NewExtractor() *Extractor {
	return newExtractor(Patterns, MaxExtracted)
}

func newExtractor(patterns []Pattern, limit int) *Extractor {
	dict := make([]string, len(patterns))
	for i, p := range patterns {
		dict[i] = p.Text
	}
	return &Extractor{
		patterns: patterns,
		matcher:  ahocorasick.NewStringMatcher(dict),
		limit:    limit,
	}
}

// Extract lowercases content and returns the patterns it contains, in list
// order, stopping after the extraction cap.
func (e *Extractor) Extract(content string) []Indicator {
	found := []Indicator{}
	if content == "" {
		return found
	}
	hits := e.matcher.MatchThreadSafe([]byte(strings.ToLower(content)))
	if len(hits) == 0 {
		return found
	}
	present := make([]bool, len(e.patterns))
	for _, idx := range hits {
		if idx >= 0 && idx < len(present) {
			present[idx] = true
		}
	}
	for i, ok := range present {
		if !ok {
			continue
		}
		found = append(found, Indicator{Category: e.patterns[i].Category, Pattern: e.patterns[i].Text})
		if e.limit > 0 && len(found) >= e.limit {
			break
		}
	}
	return found
}

// Strings renders indicators as "<Category>: <pattern>".
func Strings(indicators []Indicator) []string {
	out := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		out = append(out, ind.String())
	}
	return out
}

// Embedded returns the literal pattern text of the first MaxEmbedded entries,
// taken from after the first colon and trimmed.
func Embedded(entries []string) []string {
	n := len(entries)
	if n > MaxEmbedded {
		n = MaxEmbedded
	}
	out := make([]string, 0, n)
	for _, entry := range entries[:n] {
		out = append(out, Literal(entry))
	}
	return out
}

// Literal returns the text after the first colon of an indicator string.
func Literal(entry string) string {
	if _, after, ok := strings.Cut(entry, ":"); ok {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(entry)
}
