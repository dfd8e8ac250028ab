package hasher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asrgen/logger"
)

func init() {
	logger.Init("error")
}

func TestFileMD5(t *testing.T) {
	tmp, err := os.CreateTemp("", "hash-test")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.WriteString("hello world")
	tmp.Close()

	if got := FileMD5(tmp.Name()); got != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("md5 mismatch: %s", got)
	}
}

func TestFileMD5SpansChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	content := strings.Repeat("abcdefgh", ChunkSize) // 8 chunks
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := FileMD5(path), StringMD5(content); got != want {
		t.Fatalf("chunked digest %s != whole digest %s", got, want)
	}
}

func TestFileMD5EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := FileMD5(path); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("unexpected empty digest: %s", got)
	}
}

func TestFileMD5MissingFileReturnsSentinel(t *testing.T) {
	if got := FileMD5(filepath.Join(t.TempDir(), "missing")); got != FailedSentinel {
		t.Fatalf("expected sentinel, got %s", got)
	}
	if _, err := ComputeMD5(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error from ComputeMD5")
	}
}

func TestStringMD5(t *testing.T) {
	if got := StringMD5("sample.txt"); len(got) != 32 {
		t.Fatalf("unexpected digest length: %q", got)
	}
}
