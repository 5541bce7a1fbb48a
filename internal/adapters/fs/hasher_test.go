package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestHasher_ComputeFileHash(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.o")
	require.NoError(t, os.WriteFile(path, []byte("object"), 0o600))

	hasher := fs.NewHasher()

	h1, err := hasher.ComputeFileHash(path)
	require.NoError(t, err)
	assert.Len(t, h1, 16)

	h2, err := hasher.ComputeFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(path, []byte("other object"), 0o600))
	h3, err := hasher.ComputeFileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = hasher.ComputeFileHash(filepath.Join(tmpDir, "missing"))
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrFileOpenFailed.Error())
}

func TestHasher_ComputeActionHash(t *testing.T) {
	hasher := fs.NewHasher()

	base := domain.Action{
		Kind:    domain.ActionCompile,
		Target:  "CLI",
		Source:  "lifepo4wered-cli",
		Program: "gcc",
		Inputs:  []string{"src/lifepo4wered-cli.c"},
		Output:  "build/CLI/lifepo4wered-cli.o",
		Flags:   []string{"-std=c99", "-Wall", "-O2"},
	}
	baseHash := hasher.ComputeActionHash(base)
	assert.Equal(t, baseHash, hasher.ComputeActionHash(base))

	tests := []struct {
		name   string
		mutate func(a *domain.Action)
	}{
		{"flag appended", func(a *domain.Action) { a.Flags = append(a.Flags, "-DSYSTEMD") }},
		{"flag order", func(a *domain.Action) { a.Flags = []string{"-Wall", "-std=c99", "-O2"} }},
		{"program", func(a *domain.Action) { a.Program = "clang" }},
		{"kind", func(a *domain.Action) { a.Kind = domain.ActionLink }},
		{"output", func(a *domain.Action) { a.Output = "build/DAEMON/lifepo4wered-cli.o" }},
		{"input", func(a *domain.Action) { a.Inputs = []string{"src/other.c"} }},
		{"depfile", func(a *domain.Action) { a.Depfile = "build/CLI/lifepo4wered-cli.d" }},
		{"flag moved into input section", func(a *domain.Action) {
			a.Inputs = append(a.Inputs, "-std=c99")
			a.Flags = []string{"-Wall", "-O2"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			a.Inputs = append([]string(nil), base.Inputs...)
			a.Flags = append([]string(nil), base.Flags...)
			tt.mutate(&a)
			assert.NotEqual(t, baseHash, hasher.ComputeActionHash(a))
		})
	}
}
