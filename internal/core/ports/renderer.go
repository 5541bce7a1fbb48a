package ports

import "time"

// Renderer turns build progress into terminal output.
//
//go:generate go run go.uber.org/mock/mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// OnStepStart is called when a step begins.
	// parentID is empty for top-level steps.
	OnStepStart(spanID, parentID, name string, startTime time.Time)

	// OnStepLog is called when a step emits tool output.
	OnStepLog(spanID string, data []byte)

	// OnStepComplete is called when a step finishes. err is nil on success.
	OnStepComplete(spanID string, endTime time.Time, err error)
}
