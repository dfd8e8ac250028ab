package rules

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"asrgen/hasher"
	"asrgen/inspector"
	"asrgen/logger"

	"gopkg.in/yaml.v3"
)

func init() {
	logger.Init("error")
}

var fixedNow = func() time.Time {
	return time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
}

func newTestRenderer() *Renderer {
	return NewRenderer(Options{Now: fixedNow})
}

func renderFile(t *testing.T, r *Renderer, name, content string) (Bundle, Input) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	in := Input{
		FileName: name,
		Path:     path,
		Record:   inspector.New(nil).Inspect(path),
		Hash:     hasher.FileMD5(path),
	}
	bundle, err := r.Render(in)
	if err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return bundle, in
}

func TestRenderTextScenario(t *testing.T) {
	bundle, in := renderFile(t, newTestRenderer(), "sample.txt", "visit http://bad.com/x.exe now")

	if bundle.Kind != KindText {
		t.Fatalf("unexpected kind: %s", bundle.Kind)
	}
	if !strings.HasPrefix(bundle.Yara, "rule Rule_sample_txt\n{") {
		t.Fatalf("unexpected rule header:\n%s", bundle.Yara)
	}
	for _, want := range []string{
		`$indicator_1 = "http://" nocase`,
		`$indicator_2 = ".exe" nocase`,
		`$file_name = "sample.txt" wide ascii`,
		`$hash = "` + in.Hash + `"`,
		`md5 = "` + in.Hash + `"`,
		`file_type = "text/plain"`,
		`file_size = 30`,
		`date = "2026-10-19T12:30:00Z"`,
		`description = "Generated from sample.txt"`,
		"any of them",
	} {
		if !strings.Contains(bundle.Yara, want) {
			t.Errorf("yara rule missing %q:\n%s", want, bundle.Yara)
		}
	}
	if strings.Contains(bundle.Yara, "$indicator_3") {
		t.Fatalf("unexpected third indicator:\n%s", bundle.Yara)
	}
	got := bundle.Metadata.IndicatorsFound
	if len(got) != 2 || got[0] != "URL: http://" || got[1] != "Executable: .exe" {
		t.Fatalf("unexpected metadata indicators: %v", got)
	}
}

func TestRenderCSVScenario(t *testing.T) {
	bundle, in := renderFile(t, newTestRenderer(), "data.csv", "name,url\nx,http://bad.com/malware.exe\n")

	if bundle.Kind != KindCSV {
		t.Fatalf("unexpected kind: %s", bundle.Kind)
	}
	if !strings.HasPrefix(bundle.Yara, "rule CSV_Rule_data_csv\n") {
		t.Fatalf("unexpected rule header:\n%s", bundle.Yara)
	}
	if !strings.Contains(bundle.Yara, `file_type = "text/csv"`) {
		t.Fatalf("expected csv type literal:\n%s", bundle.Yara)
	}
	if strings.Contains(bundle.Yara, "$indicator_") {
		t.Fatalf("csv rule must not embed indicators:\n%s", bundle.Yara)
	}
	if n := strings.Count(bundle.Yara, "        $"); n != 2 {
		t.Fatalf("expected exactly two string entries, got %d:\n%s", n, bundle.Yara)
	}
	if len(bundle.Metadata.IndicatorsFound) != 0 {
		t.Fatalf("csv metadata must have no indicators: %v", bundle.Metadata.IndicatorsFound)
	}
	if bundle.Metadata.FileHash != in.Hash {
		t.Fatalf("hash mismatch: %s != %s", bundle.Metadata.FileHash, in.Hash)
	}
}

func TestRenderCSVSuffixIsCaseSensitive(t *testing.T) {
	bundle, _ := renderFile(t, newTestRenderer(), "DATA.CSV", "a,b\nmalware,1\n")
	if bundle.Kind != KindText {
		t.Fatalf("upper-case suffix should take the text branch, got %s", bundle.Kind)
	}
	if len(bundle.Metadata.IndicatorsFound) != 1 {
		t.Fatalf("expected content indicators: %v", bundle.Metadata.IndicatorsFound)
	}
}

func TestRenderUsesFullContentForIndicators(t *testing.T) {
	content := strings.Repeat("x", inspector.PrefixBytes+10) + " backdoor"
	bundle, in := renderFile(t, newTestRenderer(), "late.log", content)
	if len(in.Record.Indicators) != 0 {
		t.Fatalf("prefix scan should miss late indicator: %v", in.Record.Indicators)
	}
	if got := bundle.Metadata.IndicatorsFound; len(got) != 1 || got[0] != "Backdoor reference: backdoor" {
		t.Fatalf("full scan should find late indicator: %v", got)
	}
}

func TestRenderIndicatorCaps(t *testing.T) {
	content := "http:// https:// .exe .dll malware virus trojan backdoor adware spyware"
	bundle, _ := renderFile(t, newTestRenderer(), "many.txt", content)
	if n := len(bundle.Metadata.IndicatorsFound); n != 5 {
		t.Fatalf("expected 5 extracted indicators, got %d", n)
	}
	if n := strings.Count(bundle.Yara, "$indicator_"); n != 3 {
		t.Fatalf("expected 3 embedded indicators, got %d:\n%s", n, bundle.Yara)
	}
}

func TestRenderFallbackOnReadFailure(t *testing.T) {
	r := newTestRenderer()
	missing := filepath.Join(t.TempDir(), "gone.txt")
	bundle, err := r.Render(Input{
		FileName: "gone.txt",
		Path:     missing,
		Record:   inspector.FileRecord{Path: missing},
		Hash:     hasher.FailedSentinel,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if bundle.Kind != KindBasic || bundle.ReadErr == nil {
		t.Fatalf("expected basic fallback with read error, got %s %v", bundle.Kind, bundle.ReadErr)
	}
	if !strings.HasPrefix(bundle.Yara, "rule Basic_Rule_gone_txt\n") {
		t.Fatalf("unexpected fallback rule:\n%s", bundle.Yara)
	}
	if strings.Contains(bundle.Yara, "$indicator_") || strings.Contains(bundle.Yara, "file_type") {
		t.Fatalf("fallback rule should hold only filename and hash:\n%s", bundle.Yara)
	}
	if bundle.Sigma == "" {
		t.Fatal("fallback should keep the sigma rule")
	}
	if bundle.Metadata.FileHash != hasher.FailedSentinel || bundle.Metadata.FileType != "unknown" {
		t.Fatalf("unexpected fallback metadata: %+v", bundle.Metadata)
	}
}

func TestRenderUsesConfiguredReader(t *testing.T) {
	denied := errors.New("permission denied")
	var seen string
	r := NewRenderer(Options{
		Now: fixedNow,
		Reader: func(path string, _ inspector.ReadOptions) ([]byte, error) {
			seen = path
			return nil, denied
		},
	})
	path := filepath.Join(t.TempDir(), "locked.txt")
	if err := os.WriteFile(path, []byte("virus"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bundle, err := r.Render(Input{
		FileName: "locked.txt",
		Path:     path,
		Record:   inspector.FileRecord{Path: path},
		Hash:     hasher.FailedSentinel,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if seen != path {
		t.Fatalf("reader called with %q, want %q", seen, path)
	}
	if bundle.Kind != KindBasic || !errors.Is(bundle.ReadErr, denied) {
		t.Fatalf("expected basic fallback carrying the reader error, got %s %v", bundle.Kind, bundle.ReadErr)
	}
}

func TestRenderSigmaRule(t *testing.T) {
	bundle, _ := renderFile(t, newTestRenderer(), "it's here.txt", "hello")

	var parsed sigmaRule
	if err := yaml.Unmarshal([]byte(bundle.Sigma), &parsed); err != nil {
		t.Fatalf("sigma rule is not valid YAML: %v\n%s", err, bundle.Sigma)
	}
	if parsed.Title != "Suspicious File - it's here.txt" {
		t.Fatalf("unexpected title: %q", parsed.Title)
	}
	if parsed.ID != hasher.StringMD5("it's here.txt") {
		t.Fatalf("unexpected id: %q", parsed.ID)
	}
	if parsed.Detection.Selection["FileName|endswith"] != "it's here.txt" {
		t.Fatalf("unexpected selection: %v", parsed.Detection.Selection)
	}
	if parsed.Detection.Condition != "selection" || parsed.Level != "medium" || parsed.Status != "experimental" {
		t.Fatalf("unexpected boilerplate: %+v", parsed)
	}
	if parsed.LogSource.Category != "file_event" {
		t.Fatalf("unexpected logsource: %+v", parsed.LogSource)
	}
	if len(parsed.FalsePositives) != 1 || parsed.FalsePositives[0] != "Unknown" {
		t.Fatalf("unexpected falsepositives: %v", parsed.FalsePositives)
	}
	if strings.Index(bundle.Sigma, "selection:") > strings.Index(bundle.Sigma, "condition:") {
		t.Fatalf("selection should precede condition:\n%s", bundle.Sigma)
	}
}

func TestSigmaUUIDFormat(t *testing.T) {
	r := NewRenderer(Options{Now: fixedNow, SigmaIDFormat: SigmaIDUUID})
	bundle, _ := renderFile(t, r, "sample.txt", "hello")
	var parsed sigmaRule
	if err := yaml.Unmarshal([]byte(bundle.Sigma), &parsed); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	uuidRe := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-3[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	if !uuidRe.MatchString(parsed.ID) {
		t.Fatalf("expected name-based uuid, got %q", parsed.ID)
	}
	if sigmaID("sample.txt", SigmaIDUUID) != parsed.ID {
		t.Fatal("uuid id should be deterministic")
	}
}

func TestRenderEscapesLiterals(t *testing.T) {
	bundle, _ := renderFile(t, newTestRenderer(), `we"ird\name.txt`, "x")
	if !strings.Contains(bundle.Yara, `$file_name = "we\"ird\\name.txt" wide ascii`) {
		t.Fatalf("filename literal not escaped:\n%s", bundle.Yara)
	}
	if !strings.HasPrefix(bundle.Yara, "rule Rule_we_ird_name_txt\n") {
		t.Fatalf("identifier not sanitized:\n%s", bundle.Yara)
	}
	if strings.Count(bundle.Yara, "{") != strings.Count(bundle.Yara, "}") {
		t.Fatalf("unbalanced braces:\n%s", bundle.Yara)
	}
}

func TestRenderCreatedIsSharedAcrossFiles(t *testing.T) {
	r := newTestRenderer()
	a, _ := renderFile(t, r, "a.txt", "a")
	b, _ := renderFile(t, r, "b.csv", "b")
	if a.Metadata.Created != r.Created() || b.Metadata.Created != r.Created() {
		t.Fatalf("created should be fixed per renderer: %s %s", a.Metadata.Created, b.Metadata.Created)
	}
	if a.Metadata.Author != DefaultAuthor || a.Metadata.Version != RuleVersion || a.Metadata.Status != StatusGenerated {
		t.Fatalf("unexpected authorship fields: %+v", a.Metadata)
	}
}

func TestRenderTLSHMeta(t *testing.T) {
	r := newTestRenderer()
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("content"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bundle, err := r.Render(Input{FileName: "f.txt", Path: path, Hash: hasher.FileMD5(path), TLSH: "T1ABCDEF"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(bundle.Yara, `tlsh = "T1ABCDEF"`) || bundle.Metadata.FileTLSH != "T1ABCDEF" {
		t.Fatalf("tlsh not carried through:\n%s", bundle.Yara)
	}
}

func TestRenderRejectsInvalidHash(t *testing.T) {
	r := newTestRenderer()
	path := filepath.Join(t.TempDir(), "f.csv")
	if err := os.WriteFile(path, []byte("a"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := r.Render(Input{FileName: "f.csv", Path: path, Hash: "not-a-hash"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSanitize(t *testing.T) {
	wordOnly := regexp.MustCompile(`^[A-Za-z0-9_]*$`)
	for _, name := range []string{"sample.txt", "my file (1).csv", "ünïcödé.bin", "a-b.c d", "already_clean"} {
		once := Sanitize(name)
		if !wordOnly.MatchString(once) {
			t.Errorf("Sanitize(%q) = %q has non-word characters", name, once)
		}
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", name, twice, once)
		}
	}
	if got := Sanitize("my file.txt"); got != "my_file_txt" {
		t.Fatalf("unexpected sanitize: %q", got)
	}
}

func TestIdentifierLength(t *testing.T) {
	id := Identifier("Rule_", strings.Repeat("a", 300)+".txt")
	if len(id) != MaxIdentifierLength || !strings.HasPrefix(id, "Rule_") {
		t.Fatalf("unexpected identifier (%d): %s", len(id), id)
	}
}

func TestQuote(t *testing.T) {
	cases := map[string]string{
		"plain":     `"plain"`,
		`a"b`:       `"a\"b"`,
		`a\b`:       `"a\\b"`,
		"tab\there": `"tab\there"`,
		"é":         `"\xc3\xa9"`,
		"\x00":      `"\x00"`,
	}
	for in, want := range cases {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestRenderFlagsLossyDecode(t *testing.T) {
	r := newTestRenderer()
	bundle, _ := renderFile(t, r, "mixed.bin", "ok \xff\xfe trojan")
	if !bundle.Lossy {
		t.Fatal("invalid UTF-8 should mark the bundle lossy")
	}
	if got := bundle.Metadata.IndicatorsFound; len(got) != 1 || got[0] != "Trojan reference: trojan" {
		t.Fatalf("indicator scan should survive invalid bytes: %v", got)
	}
	clean, _ := renderFile(t, r, "clean.txt", "plain")
	if clean.Lossy {
		t.Fatal("valid UTF-8 should not be lossy")
	}
}
