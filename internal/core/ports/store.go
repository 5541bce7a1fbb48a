package ports

import "go.trai.ch/kiln/internal/core/domain"

// BuildInfoStore defines the interface for storing and retrieving build information.
// Every method takes the project root the records belong to.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type BuildInfoStore interface {
	// Get retrieves the build info for an output path relative to root.
	// Returns nil, nil if not found.
	Get(root, output string) (*domain.BuildInfo, error)

	// Put stores the build info.
	Put(root string, info domain.BuildInfo) error

	// List returns every record, sorted by output.
	List(root string) ([]domain.BuildInfo, error)

	// GetProbe returns the persisted probe outcome for a feature.
	// Returns nil, nil if not found.
	GetProbe(root, feature string) (*domain.ProbeRecord, error)

	// PutProbe persists a probe outcome.
	PutProbe(root string, record domain.ProbeRecord) error

	// Clear drops every record for root.
	Clear(root string) error
}
