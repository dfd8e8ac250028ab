package utils

import "testing"

func TestShouldInclude(t *testing.T) {
	matcher := NewPatternMatcher(nil, nil)
	if !matcher.ShouldInclude("file.txt") {
		t.Fatal("expected include by default")
	}
	matcher = NewPatternMatcher([]string{"*.csv"}, nil)
	if matcher.ShouldInclude("sample.txt") {
		t.Fatal("should not include unmatched include pattern")
	}
	if !matcher.ShouldInclude("data.csv") {
		t.Fatal("should include matching include pattern")
	}
	matcher = NewPatternMatcher(nil, []string{"secret.*"})
	if matcher.ShouldInclude("secret.txt") {
		t.Fatal("should exclude matching exclude pattern")
	}
	if !matcher.ShouldInclude("notes.txt") {
		t.Fatal("should include when exclude does not match")
	}
	matcher = NewPatternMatcher([]string{`^report_\d+\.log$`}, nil)
	if !matcher.ShouldInclude("report_42.log") {
		t.Fatal("should match regex include pattern")
	}
	if matcher.ShouldInclude("report_x.log") {
		t.Fatal("regex include should reject non-matching name")
	}
}

func TestNilMatcherIncludesEverything(t *testing.T) {
	var matcher *PatternMatcher
	if !matcher.ShouldInclude("anything.bin") {
		t.Fatal("nil matcher should include")
	}
}

func TestValidatePatterns(t *testing.T) {
	if err := ValidatePatterns([]string{"*.txt", `^a\d+$`, "data.csv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePatterns([]string{"[a-"}); err == nil {
		t.Fatal("expected error for pattern invalid as glob and regex")
	}
}
