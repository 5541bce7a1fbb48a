package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const lifepo4weredConfig = `
version: "1"
buildDir: build
compiler: gcc
targets:
  SO:
    output: liblifepo4wered.so
    sources: [lifepo4wered-access, lifepo4wered-data]
    cflags: [-std=c99, -Wall, -O2, -fpic]
    lflags: [-shared]
  CLI:
    output: lifepo4wered-cli
    sources: [lifepo4wered-access, lifepo4wered-data, lifepo4wered-cli]
    cflags: [-std=c99, -Wall, -O2]
  DAEMON:
    output: lifepo4wered-daemon
    sources: [lifepo4wered-access, lifepo4wered-data, lifepo4wered-daemon]
    cflags: [-std=c99, -Wall, -O2]
probe:
  target:
    name: SYSTEMD
    output: systemd-check
    sources: [systemd-check]
    lflags: [-lsystemd]
  cflags: [-DSYSTEMD]
  lflags: [-lsystemd]
  gates: [DAEMON]
shortcuts:
  cli: CLI
  daemon: DAEMON
  so: SO
`

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	return config.NewLoader(mockLogger)
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, domain.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, lifepo4weredConfig)

	p, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, dir, p.Layout.Root)
	assert.Equal(t, filepath.Join(dir, "build"), p.Layout.BuildDir)
	assert.Equal(t, dir, p.Layout.SourceDir)
	assert.Equal(t, ".c", p.Layout.SourceExt)
	assert.Equal(t, ".o", p.Layout.ObjectExt)
	assert.Equal(t, domain.Toolchain{Compiler: "gcc", Linker: "gcc", Depfiles: true}, p.Toolchain)

	assert.Equal(t, []string{"CLI", "DAEMON", "SO"}, p.Registry.Names())
	so, err := p.Registry.Get("SO")
	require.NoError(t, err)
	assert.Equal(t, []string{"-std=c99", "-Wall", "-O2", "-fpic"}, so.CompileFlags)
	assert.Equal(t, []string{"-shared"}, so.LinkFlags)

	require.NotNil(t, p.Probe)
	assert.Equal(t, "systemd", p.Probe.Feature)
	assert.Equal(t, "SYSTEMD", p.Probe.Target.Name)
	assert.Equal(t, []string{"-lsystemd"}, p.Probe.Target.LinkFlags)
	assert.Equal(t, []string{"-DSYSTEMD"}, p.Probe.CompileFlags)
	assert.Equal(t, []string{"DAEMON"}, p.Probe.Gates)

	assert.Equal(t, "CLI", p.Shortcuts["cli"])
}

func TestLoad_Discovery(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, lifepo4weredConfig)

	nested := filepath.Join(dir, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	p, err := newLoader(t).Load(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, p.Layout.Root)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := newLoader(t).Load(t.TempDir())
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
targets:
  APP:
    output: app
    sources: [main]
`)

	p, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.Toolchain{Compiler: "gcc", Linker: "gcc", Depfiles: true}, p.Toolchain)
	assert.Equal(t, filepath.Join(dir, domain.DefaultBuildDir), p.Layout.BuildDir)
	assert.Nil(t, p.Probe)
}

func TestLoad_LinkerDefaultsToCompiler(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
compiler: arm-linux-gnueabihf-gcc
sourceDir: src
sourceExt: .cc
targets:
  APP:
    output: app
    sources: [main]
`)

	p, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "arm-linux-gnueabihf-gcc", p.Toolchain.Linker)
	assert.Equal(t, filepath.Join(dir, "src"), p.Layout.SourceDir)
	assert.Equal(t, ".cc", p.Layout.SourceExt)
}

func TestLoad_DepfilesCanBeDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
compiler: tcc
depfiles: false
targets:
  APP:
    output: app
    sources: [main]
`)

	p, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.False(t, p.Toolchain.Depfiles)
	spec, err := p.Registry.Get("APP")
	require.NoError(t, err)
	assert.Empty(t, p.CompileAction(spec, "main").Depfile)
}

func TestLoad_RootOverride(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(cfgDir, 0o750))
	path := writeConfig(t, cfgDir, `
root: ..
targets:
  APP:
    output: app
    sources: [main]
`)

	p, err := newLoader(t).Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, p.Layout.Root)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "empty file",
			content: "",
			wantErr: domain.ErrNoTargetsDefined,
		},
		{
			name:    "unsupported version",
			content: "version: \"2\"\ntargets:\n  A:\n    output: a\n    sources: [a]\n",
			wantErr: domain.ErrUnsupportedVersion,
		},
		{
			name:    "reserved name",
			content: "targets:\n  all:\n    output: a\n    sources: [a]\n",
			wantErr: domain.ErrReservedTargetName,
		},
		{
			name:    "no sources",
			content: "targets:\n  A:\n    output: a\n",
			wantErr: domain.ErrTargetHasNoSources,
		},
		{
			name:    "unknown shortcut target",
			content: "targets:\n  A:\n    output: a\n    sources: [a]\nshortcuts:\n  b: B\n",
			wantErr: domain.ErrUnknownShortcut,
		},
		{
			name:    "unknown gate",
			content: "targets:\n  A:\n    output: a\n    sources: [a]\nprobe:\n  target:\n    name: P\n    output: p\n    sources: [p]\n  gates: [B]\n",
			wantErr: domain.ErrUnknownGate,
		},
		{
			name:    "probe name collides",
			content: "targets:\n  A:\n    output: a\n    sources: [a]\nprobe:\n  target:\n    name: A\n    output: p\n    sources: [p]\n",
			wantErr: domain.ErrTargetAlreadyExists,
		},
		{
			name:    "probe target without output",
			content: "targets:\n  A:\n    output: a\n    sources: [a]\nprobe:\n  target:\n    name: P\n    sources: [p]\n",
			wantErr: domain.ErrTargetHasNoOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := newLoader(t).Load(path)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "targets: [unclosed"},
		{"unknown field", "targets:\n  A:\n    output: a\n    sources: [a]\n    cflag: [-O2]\n"},
		{"duplicate target", "targets:\n  A:\n    output: a\n    sources: [a]\n  A:\n    output: b\n    sources: [b]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := newLoader(t).Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), domain.ErrConfigParseFailed.Error())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newLoader(t).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrConfigReadFailed.Error())
}
