package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestCompileError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("wrapped: %w", &domain.CompileError{
		Target:     "CLI",
		Source:     "lifepo4wered-cli",
		ToolOutput: "lifepo4wered-cli.c:1: error: expected ';'\n",
		Err:        cause,
	})

	require.ErrorIs(t, err, domain.ErrCompileFailed)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrLinkFailed)

	var compileErr *domain.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "lifepo4wered-cli", compileErr.Source)
	assert.Contains(t, err.Error(), "expected ';'")
}

func TestLinkError(t *testing.T) {
	err := &domain.LinkError{Target: "SO", Missing: []string{"a.o", "b.o"}}

	require.ErrorIs(t, err, domain.ErrLinkFailed)
	assert.Contains(t, err.Error(), "missing objects: a.o, b.o")
}

func TestProbeError(t *testing.T) {
	inner := &domain.LinkError{Target: "SYSTEMD", Output: "systemd-check", ToolOutput: "cannot find -lsystemd"}
	err := &domain.ProbeError{Feature: "systemd", Err: inner}

	require.ErrorIs(t, err, domain.ErrProbeFailed)
	require.ErrorIs(t, err, domain.ErrLinkFailed)
	assert.Contains(t, err.Error(), "systemd")
}

func TestTag(t *testing.T) {
	err := domain.Tag(domain.ErrUnknownTarget, "target", "X")

	require.ErrorIs(t, err, domain.ErrUnknownTarget)
	assert.Equal(t, domain.ErrUnknownTarget.Error(), err.Error())
}
