package fuzzy

import (
	"bufio"
	"fmt"
	"os"

	"github.com/glaslos/tlsh"
)

// MinTLSHSize is the smallest input TLSH produces a digest for.
const MinTLSHSize = 50

type TLSHHasher struct{}

func (h TLSHHasher) Name() string {
	return "tlsh"
}

func (h TLSHHasher) HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < MinTLSHSize {
		return "", fmt.Errorf("file too small for tlsh: %d bytes", info.Size())
	}

	hash, err := tlsh.HashReader(bufio.NewReader(f))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func init() {
	Register(TLSHHasher{})
}
