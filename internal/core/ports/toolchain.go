// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Toolchain runs the external compiler and linker.
//
//go:generate go run go.uber.org/mock/mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type Toolchain interface {
	// Compile turns action.Inputs[0] into the object action.Output.
	// It returns everything the compiler printed, also on failure.
	Compile(ctx context.Context, action domain.Action) ([]byte, error)

	// Link turns action.Inputs, in order, into the artifact action.Output.
	// It returns everything the linker printed, also on failure.
	Link(ctx context.Context, action domain.Action) ([]byte, error)
}
