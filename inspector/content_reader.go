package inspector

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/exp/mmap"
)

const (
	defaultMmapMinSize = 128 * 1024
	defaultChunkSize   = 256 * 1024
)

var openMmapReader = mmap.Open

// ReadOptions controls how ReadContent loads a file.
type ReadOptions struct {
	// Mode is auto, stream or mmap. Empty means auto.
	Mode string
	// MaxBytes truncates the read; zero or negative reads the whole file.
	MaxBytes int64
	// MmapMinSize is the smallest file auto mode memory-maps.
	MmapMinSize int64
	// ChunkSize is the stream read size.
	ChunkSize int
}

// ReadContent returns the content of path according to opts.
func ReadContent(path string, opts ReadOptions) ([]byte, error) {
	if opts.MmapMinSize <= 0 {
		opts.MmapMinSize = defaultMmapMinSize
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "stream":
		return readContentStream(path, opts.MaxBytes, opts.ChunkSize)
	case "mmap":
		return readContentMmap(path, opts.MaxBytes)
	case "auto":
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s is not a regular file", path)
		}
		if info.Size() >= opts.MmapMinSize {
			content, err := readContentMmap(path, opts.MaxBytes)
			if err == nil {
				return content, nil
			}
		}
		return readContentStream(path, opts.MaxBytes, opts.ChunkSize)
	default:
		return nil, fmt.Errorf("unknown content read mode %q", opts.Mode)
	}
}

func readContentMmap(path string, maxBytes int64) ([]byte, error) {
	r, err := openMmapReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	readSize := int64(r.Len())
	if maxBytes > 0 && readSize > maxBytes {
		readSize = maxBytes
	}
	if readSize <= 0 {
		return []byte{}, nil
	}

	buf := make([]byte, readSize)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func readContentStream(path string, maxBytes int64, chunkSize int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var content []byte
	if stat, err := file.Stat(); err == nil && stat.Size() > 0 {
		capHint := stat.Size()
		if maxBytes > 0 && capHint > maxBytes {
			capHint = maxBytes
		}
		content = make([]byte, 0, capHint)
	}
	return readContentChunks(file, content, chunkSize, maxBytes)
}

func readContentChunks(r io.Reader, content []byte, chunkSize int, maxBytes int64) ([]byte, error) {
	buffer := make([]byte, chunkSize)
	var total int64
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			chunk := buffer[:n]
			if maxBytes > 0 && total+int64(n) > maxBytes {
				chunk = chunk[:maxBytes-total]
			}
			content = append(content, chunk...)
			total += int64(len(chunk))
			if maxBytes > 0 && total >= maxBytes {
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

// readPrefix reads at most n bytes from the start of path.
func readPrefix(path string, n int) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:read], nil
}
