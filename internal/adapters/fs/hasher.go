// Package fs provides file system adapters: content hashing and timestamp access.
package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher provides hashing functionality for actions and files.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// ComputeActionHash computes a single hash representing everything that shapes
// an action's output except the input file contents, which are tracked by mtime.
func (h *Hasher) ComputeActionHash(action domain.Action) string {
	hasher := xxhash.New()

	writeField(hasher, string(action.Kind))
	writeField(hasher, action.Program)
	_, _ = hasher.Write([]byte{0}) // Section separator

	writeSection(hasher, action.Inputs)
	writeField(hasher, action.Output)
	writeField(hasher, action.Depfile)
	_, _ = hasher.Write([]byte{0})

	// Flag order matters to the compiler, so it is preserved.
	writeSection(hasher, action.Flags)

	return fmt.Sprintf("%016x", hasher.Sum64())
}

func writeField(hasher *xxhash.Digest, s string) {
	_, _ = hasher.WriteString(s)
	_, _ = hasher.Write([]byte{0})
}

func writeSection(hasher *xxhash.Digest, items []string) {
	for _, item := range items {
		writeField(hasher, item)
	}
	_, _ = hasher.Write([]byte{0})
}
