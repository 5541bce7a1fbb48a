package app_test

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/probe"
	"go.uber.org/mock/gomock"
)

// fakeBuilder records every build and plan request.
type fakeBuilder struct {
	mu     sync.Mutex
	built  []string
	specs  map[string]domain.TargetSpec
	forced map[string]bool
	fail   map[string]error
	stale  map[string]bool
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		specs:  make(map[string]domain.TargetSpec),
		forced: make(map[string]bool),
		fail:   make(map[string]error),
		stale:  make(map[string]bool),
	}
}

func (f *fakeBuilder) BuildTarget(
	_ context.Context,
	p *domain.Project,
	spec domain.TargetSpec,
	force bool,
) (domain.TargetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.built = append(f.built, spec.Name)
	f.specs[spec.Name] = spec
	f.forced[spec.Name] = force

	result := domain.TargetResult{Target: spec.Name, Artifact: p.Layout.ArtifactPath(spec)}
	if err := f.fail[spec.Name]; err != nil {
		return result, err
	}
	result.Compiled = spec.Sources
	result.Linked = true
	return result, nil
}

func (f *fakeBuilder) Plan(p *domain.Project, spec domain.TargetSpec) (domain.TargetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.specs[spec.Name] = spec
	status := domain.TargetStatus{Target: spec.Name}
	if f.stale[spec.Name] {
		status.Steps = []domain.PlannedStep{{Action: p.LinkAction(spec), Reason: domain.ReasonMissingOutput}}
	}
	return status, nil
}

func (f *fakeBuilder) builtTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.built)
}

type fixture struct {
	app     *app.App
	project *domain.Project
	builder *fakeBuilder
	store   *cas.Store
	watcher *mocks.MockWatcher
	logger  *mocks.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg, err := domain.NewRegistry(
		domain.TargetSpec{Name: "CLI", Output: "lifepo4wered-cli", Sources: []string{"lifepo4wered-data", "lifepo4wered-cli"}},
		domain.TargetSpec{Name: "DAEMON", Output: "lifepo4wered-daemon", Sources: []string{"lifepo4wered-data", "lifepo4wered-daemon"}},
		domain.TargetSpec{Name: "SO", Output: "liblifepo4wered.so", Sources: []string{"lifepo4wered-data"}, LinkFlags: []string{"-shared"}},
	)
	require.NoError(t, err)

	root := t.TempDir()
	project := &domain.Project{
		Layout: domain.Layout{
			Root:      root,
			BuildDir:  filepath.Join(root, "build"),
			SourceDir: filepath.Join(root, "src"),
			SourceExt: ".c",
			ObjectExt: ".o",
		},
		Toolchain: domain.Toolchain{Compiler: "gcc", Linker: "gcc"},
		Registry:  reg,
		Probe: &domain.ProbeSpec{
			Feature:      "systemd",
			Target:       domain.TargetSpec{Name: "SYSTEMD", Output: "systemd-check", Sources: []string{"systemd-check"}},
			CompileFlags: []string{"-DSYSTEMD"},
			LinkFlags:    []string{"-lsystemd"},
			Gates:        []string{"DAEMON"},
		},
		Shortcuts: map[string]string{"cli": "CLI", "daemon": "DAEMON", "so": "SO"},
	}

	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(".").Return(project, nil).AnyTimes()

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()

	watcher := mocks.NewMockWatcher(ctrl)
	store := cas.NewStore()
	builder := newFakeBuilder()
	tracer := telemetry.NewNoOpTracer()
	prober := probe.New(builder, store, tracer, log)

	a := app.New(loader, builder, prober, store, fs.NewFileSystem(), watcher, tracer, log)
	return &fixture{app: a, project: project, builder: builder, store: store, watcher: watcher, logger: log}
}

func TestApp_BuildAllRunsProbeFirst(t *testing.T) {
	f := newFixture(t)

	results, err := f.app.Build(context.Background(), nil, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"SYSTEMD", "CLI", "DAEMON", "SO"}, f.builder.builtTargets())
	assert.True(t, f.builder.forced["SYSTEMD"])
	assert.False(t, f.builder.forced["CLI"])
	require.Len(t, results, 3)
	assert.Equal(t, "CLI", results[0].Target)

	for _, name := range []string{"CLI", "DAEMON", "SO"} {
		assert.Equal(t, []string{"-DSYSTEMD"}, f.builder.specs[name].CompileFlags, name)
	}
	assert.Equal(t, []string{"-shared", "-lsystemd"}, f.builder.specs["SO"].LinkFlags)
}

func TestApp_BuildUngatedSelectionSkipsProbe(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.Build(context.Background(), []string{"cli", "SO"}, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"CLI", "SO"}, f.builder.builtTargets())
	assert.Empty(t, f.builder.specs["CLI"].CompileFlags)
}

func TestApp_BuildProbesOncePerProcess(t *testing.T) {
	f := newFixture(t)

	for range 3 {
		_, err := f.app.Build(context.Background(), []string{"daemon"}, app.BuildOptions{})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"SYSTEMD", "DAEMON", "DAEMON", "DAEMON"}, f.builder.builtTargets())
	assert.Equal(t, []string{"-DSYSTEMD"}, f.builder.specs["DAEMON"].CompileFlags)
}

func TestApp_BuildProbeFailureIsANotice(t *testing.T) {
	f := newFixture(t)
	f.builder.fail["SYSTEMD"] = &domain.LinkError{Target: "SYSTEMD", Output: "systemd-check", ToolOutput: "cannot find -lsystemd"}
	f.logger.EXPECT().Warn("no systemd support found")

	_, err := f.app.Build(context.Background(), []string{"daemon"}, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"SYSTEMD", "DAEMON"}, f.builder.builtTargets())
	assert.Empty(t, f.builder.specs["DAEMON"].CompileFlags)
	assert.Empty(t, f.builder.specs["DAEMON"].LinkFlags)
}

func TestApp_BuildFailingTargetDoesNotStopOthers(t *testing.T) {
	f := newFixture(t)
	f.builder.fail["CLI"] = &domain.CompileError{Target: "CLI", Source: "lifepo4wered-cli", Err: errors.New("exit status 1")}

	results, err := f.app.Build(context.Background(), []string{"cli", "so"}, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	require.ErrorIs(t, err, domain.ErrCompileFailed)

	var compileErr *domain.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "lifepo4wered-cli", compileErr.Source)

	assert.Equal(t, []string{"CLI", "SO"}, f.builder.builtTargets())
	assert.False(t, results[0].Linked)
	assert.True(t, results[1].Linked)
}

func TestApp_BuildParallel(t *testing.T) {
	f := newFixture(t)

	results, err := f.app.Build(context.Background(), nil, app.BuildOptions{Jobs: 4})
	require.NoError(t, err)

	built := f.builder.builtTargets()
	assert.Equal(t, "SYSTEMD", built[0])
	assert.ElementsMatch(t, []string{"CLI", "DAEMON", "SO"}, built[1:])
	assert.Equal(t, []string{"CLI", "DAEMON", "SO"}, []string{results[0].Target, results[1].Target, results[2].Target})
}

func TestApp_BuildUnknownTarget(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.Build(context.Background(), []string{"bogus"}, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownTarget)
	assert.Empty(t, f.builder.builtTargets())
}

func TestApp_ConfigLoaderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load("elsewhere/kiln.yaml").Return(nil, domain.Tag(domain.ErrConfigNotFound, "start", "elsewhere"))

	log := mocks.NewMockLogger(ctrl)
	a := app.New(loader, newFakeBuilder(), nil, nil, nil, nil, telemetry.NewNoOpTracer(), log)
	a.UseConfig("elsewhere/kiln.yaml")

	_, err := a.Build(context.Background(), nil, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_CheckNeverProbes(t *testing.T) {
	f := newFixture(t)
	f.builder.stale["SO"] = true

	report, err := f.app.Check(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, f.builder.builtTargets())
	assert.Equal(t, domain.ProbeUnknown, report.Probe)
	assert.True(t, report.OutOfDate())
	require.Len(t, report.Targets, 3)
	assert.False(t, report.Targets[0].Stale())
	assert.True(t, report.Targets[2].Stale())
	assert.Empty(t, f.builder.specs["CLI"].CompileFlags)
}

func TestApp_CheckUsesPersistedProbeOutcome(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.PutProbe(f.project.Layout.Root, domain.ProbeRecord{
		Feature: "systemd",
		Target:  "SYSTEMD",
		Outcome: domain.ProbeAvailable.String(),
	}))

	report, err := f.app.Check(context.Background(), []string{"cli"})
	require.NoError(t, err)

	assert.Equal(t, domain.ProbeAvailable, report.Probe)
	assert.False(t, report.OutOfDate())
	assert.Equal(t, []string{"-DSYSTEMD"}, f.builder.specs["CLI"].CompileFlags)
	assert.Empty(t, f.builder.builtTargets())
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t)
	layout := f.project.Layout

	outputs := []string{"build/CLI/lifepo4wered-cli.o", "build/CLI/lifepo4wered-cli"}
	for _, rel := range outputs {
		path := layout.Abs(rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
		require.NoError(t, f.store.Put(layout.Root, domain.BuildInfo{Output: rel, Target: "CLI"}))
	}
	untracked := filepath.Join(layout.BuildDir, "SO", "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(untracked), 0o750))
	require.NoError(t, os.WriteFile(untracked, []byte("keep"), 0o600))

	require.NoError(t, f.app.Clean(context.Background()))

	for _, rel := range outputs {
		assert.NoFileExists(t, layout.Abs(rel))
	}
	assert.NoDirExists(t, layout.TargetDir("CLI"))
	assert.FileExists(t, untracked)

	records, err := f.store.List(layout.Root)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestApp_CleanRecoversFromCorruptRecords(t *testing.T) {
	f := newFixture(t)
	layout := f.project.Layout

	state := layout.StatePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(state), 0o750))
	require.NoError(t, os.WriteFile(state, []byte("{ truncated"), 0o600))

	outputs := []string{
		layout.ObjectPath("CLI", "lifepo4wered-cli"),
		layout.DepfilePath("CLI", "lifepo4wered-cli"),
		layout.ArtifactPath(domain.TargetSpec{Name: "CLI", Output: "lifepo4wered-cli"}),
		layout.ArtifactPath(f.project.Probe.Target),
	}
	for _, path := range outputs {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}
	untracked := filepath.Join(layout.BuildDir, "SO", "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(untracked), 0o750))
	require.NoError(t, os.WriteFile(untracked, []byte("keep"), 0o600))

	f.logger.EXPECT().Warn(gomock.Any()).Times(1)

	require.NoError(t, f.app.Clean(context.Background()))

	for _, path := range outputs {
		assert.NoFileExists(t, path)
	}
	assert.NoDirExists(t, layout.TargetDir("CLI"))
	assert.NoDirExists(t, layout.TargetDir("SYSTEMD"))
	assert.FileExists(t, untracked)
	assert.NoFileExists(t, state)

	records, err := f.store.List(layout.Root)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.app.Rebuild(context.Background(), app.BuildOptions{})
	require.NoError(t, err)
}

func TestApp_ProbeRunsAgainOnRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.Build(context.Background(), []string{"daemon"}, app.BuildOptions{})
	require.NoError(t, err)

	f.builder.mu.Lock()
	f.builder.fail["SYSTEMD"] = &domain.LinkError{Target: "SYSTEMD", ToolOutput: "cannot find -lsystemd"}
	f.builder.mu.Unlock()
	f.logger.EXPECT().Warn("no systemd support found")

	result, err := f.app.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, app.ProbeResult{Feature: "systemd", Target: "SYSTEMD", Outcome: domain.ProbeUnavailable}, result)
	assert.Equal(t, []string{"SYSTEMD", "DAEMON", "SYSTEMD"}, f.builder.builtTargets())

	rec, err := f.store.GetProbe(f.project.Layout.Root, "systemd")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "unavailable", rec.Outcome)
}

func TestApp_ProbeWithoutProbeConfigured(t *testing.T) {
	f := newFixture(t)
	f.project.Probe = nil

	_, err := f.app.Probe(context.Background())
	require.ErrorIs(t, err, domain.ErrNoProbeConfigured)
	assert.Empty(t, f.builder.builtTargets())
}

func TestApp_RebuildForcesEveryTarget(t *testing.T) {
	f := newFixture(t)

	_, err := f.app.Rebuild(context.Background(), app.BuildOptions{})
	require.NoError(t, err)

	for _, name := range []string{"SYSTEMD", "CLI", "DAEMON", "SO"} {
		assert.True(t, f.builder.forced[name], name)
	}
}

func TestApp_Targets(t *testing.T) {
	f := newFixture(t)

	listing, err := f.app.Targets(context.Background())
	require.NoError(t, err)

	require.Len(t, listing.Targets, 3)
	assert.Equal(t, "CLI", listing.Targets[0].Name)
	assert.Equal(t, "DAEMON", listing.Shortcuts["daemon"])
	assert.Equal(t, "systemd", listing.Probe.Feature)
	assert.Equal(t, domain.ProbeUnknown, listing.Outcome)
}

func TestApp_WatchRebuildsTargetsOwningChangedSources(t *testing.T) {
	f := newFixture(t)
	src := f.project.Layout.SourceDir

	events := []ports.WatchEvent{
		{Paths: []string{filepath.Join(src, "lifepo4wered-daemon.c")}},
		{Paths: []string{filepath.Join(src, "README.md")}},
		{Paths: []string{filepath.Join(src, "lifepo4wered-data.c"), filepath.Join(src, "lifepo4wered-daemon.c")}},
	}

	gomock.InOrder(
		f.watcher.EXPECT().Start(gomock.Any(), f.project.Layout.Root).Return(nil),
		f.watcher.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
			for _, ev := range events {
				if !yield(ev) {
					return
				}
			}
		})),
		f.watcher.EXPECT().Stop().Return(nil),
	)

	err := f.app.Watch(context.Background(), []string{"cli", "daemon"}, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SYSTEMD", "CLI", "DAEMON", // initial build
		"DAEMON",        // daemon source changed
		"CLI", "DAEMON", // shared source changed
	}, f.builder.builtTargets())
}

func TestApp_WatchRebuildsTargetsIncludingChangedHeader(t *testing.T) {
	f := newFixture(t)
	layout := f.project.Layout
	header := filepath.Join(layout.SourceDir, "lifepo4wered-data.h")

	require.NoError(t, f.store.Put(layout.Root, domain.BuildInfo{
		Output: "build/DAEMON/lifepo4wered-daemon.o",
		Target: "DAEMON",
		Deps:   []string{layout.Rel(header)},
	}))
	require.NoError(t, f.store.Put(layout.Root, domain.BuildInfo{
		Output: "build/SO/lifepo4wered-data.o",
		Target: "SO",
		Deps:   []string{layout.Rel(header)},
	}))

	f.watcher.EXPECT().Start(gomock.Any(), layout.Root).Return(nil)
	f.watcher.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
		yield(ports.WatchEvent{Paths: []string{header}})
	}))
	f.watcher.EXPECT().Stop().Return(nil)

	err := f.app.Watch(context.Background(), []string{"cli", "daemon"}, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SYSTEMD", "CLI", "DAEMON", // initial build
		"DAEMON", // header read by a daemon object; SO is not selected
	}, f.builder.builtTargets())
}

func TestApp_WatchReloadsOnConfigChange(t *testing.T) {
	f := newFixture(t)

	f.watcher.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil)
	f.watcher.EXPECT().Events().Return(iter.Seq[ports.WatchEvent](func(yield func(ports.WatchEvent) bool) {
		yield(ports.WatchEvent{Paths: []string{filepath.Join(f.project.Layout.Root, domain.ConfigFileName)}})
	}))
	f.watcher.EXPECT().Stop().Return(nil)

	err := f.app.Watch(context.Background(), []string{"so"}, app.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"SO", "SO"}, f.builder.builtTargets())
}

func TestApp_WatchUnknownTarget(t *testing.T) {
	f := newFixture(t)

	err := f.app.Watch(context.Background(), []string{"bogus"}, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrUnknownTarget)
}
