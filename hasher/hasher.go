package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"asrgen/logger"
)

// FailedSentinel replaces the digest when a file cannot be read.
const FailedSentinel = "hash_calculation_failed"

// ChunkSize is the read size used while streaming a file into the digest.
const ChunkSize = 4096

var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// FileMD5 returns the lowercase hex MD5 of the file at path, or FailedSentinel
// if the file cannot be opened or read. The digest is a content fingerprint
// for rule metadata only.
func FileMD5(path string) string {
	sum, err := ComputeMD5(path)
	if err != nil {
		logger.Warnf("Failed to hash %s: %v", path, err)
		return FailedSentinel
	}
	return sum
}

// ComputeMD5 is FileMD5 with the underlying error exposed.
func ComputeMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	h := md5.New()
	bufferPtr := chunkPool.Get().(*[]byte)
	defer chunkPool.Put(bufferPtr)
	buffer := *bufferPtr
	for {
		n, readErr := file.Read(buffer)
		if n > 0 {
			h.Write(buffer[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return "", fmt.Errorf("read: %w", readErr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StringMD5 returns the lowercase hex MD5 of s.
func StringMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
