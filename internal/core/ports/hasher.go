package ports

import "go.trai.ch/kiln/internal/core/domain"

// Hasher defines the interface for computing hashes.
//
//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_hasher.go -package=mocks -source=hasher.go
type Hasher interface {
	// ComputeFileHash computes the content hash of a file.
	ComputeFileHash(path string) (string, error)

	// ComputeActionHash fingerprints an action: program, kind, inputs, output and flags.
	ComputeActionHash(action domain.Action) string
}
