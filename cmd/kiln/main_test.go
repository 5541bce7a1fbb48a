package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/probe"
	"go.uber.org/mock/gomock"
)

type stubBuilder struct {
	stale bool
	err   error
}

func (s *stubBuilder) BuildTarget(
	_ context.Context,
	_ *domain.Project,
	spec domain.TargetSpec,
	_ bool,
) (domain.TargetResult, error) {
	return domain.TargetResult{Target: spec.Name}, s.err
}

func (s *stubBuilder) Plan(p *domain.Project, spec domain.TargetSpec) (domain.TargetStatus, error) {
	status := domain.TargetStatus{Target: spec.Name}
	if s.stale {
		status.Steps = []domain.PlannedStep{{Action: p.LinkAction(spec), Reason: domain.ReasonMissingOutput}}
	}
	return status, nil
}

func newProvider(t *testing.T, b *stubBuilder, log *mocks.MockLogger) ComponentProvider {
	t.Helper()

	reg, err := domain.NewRegistry(domain.TargetSpec{Name: "CLI", Output: "cli", Sources: []string{"cli"}})
	require.NoError(t, err)
	root := t.TempDir()
	project := &domain.Project{
		Layout:   domain.Layout{Root: root, BuildDir: root + "/build", SourceDir: root, SourceExt: ".c", ObjectExt: ".o"},
		Registry: reg,
	}

	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(gomock.Any()).Return(project, nil).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Debug(gomock.Any()).AnyTimes()

	store := cas.NewStore()
	tracer := telemetry.NewNoOpTracer()
	application := app.New(
		loader,
		b,
		probe.New(b, store, tracer, log),
		store,
		fs.NewFileSystem(),
		mocks.NewMockWatcher(ctrl),
		tracer,
		log,
	)

	return func(_ context.Context) (*app.Components, func(), error) {
		return app.NewComponents(application, log), func() {}, nil
	}
}

func TestRun_Version(t *testing.T) {
	log := mocks.NewMockLogger(gomock.NewController(t))
	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), newProvider(t, &stubBuilder{}, log))
	assert.Equal(t, exitOK, exitCode)
}

func TestRun_ProviderError(t *testing.T) {
	stderr := new(bytes.Buffer)
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("graph resolution failed")
	}

	exitCode := run(context.Background(), []string{"build"}, stderr, provider)
	assert.Equal(t, exitError, exitCode)
	assert.Equal(t, "Error: graph resolution failed\n", stderr.String())
}

func TestRun_CheckExitCodes(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	log := mocks.NewMockLogger(gomock.NewController(t))
	assert.Equal(t, exitOK, run(context.Background(), []string{"check"}, new(bytes.Buffer), newProvider(t, &stubBuilder{}, log)))

	log = mocks.NewMockLogger(gomock.NewController(t))
	assert.Equal(t, exitOutOfDate, run(context.Background(), []string{"check"}, new(bytes.Buffer), newProvider(t, &stubBuilder{stale: true}, log)))
}

func TestRun_BuildFailure(t *testing.T) {
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
		assert.ErrorIs(t, err, domain.ErrLinkFailed)
	})

	b := &stubBuilder{err: &domain.LinkError{Target: "CLI", Output: "cli", ToolOutput: "undefined reference"}}
	exitCode := run(context.Background(), []string{"build", "CLI"}, new(bytes.Buffer), newProvider(t, b, log))
	assert.Equal(t, exitError, exitCode)
}

func TestRun_UnknownTarget(t *testing.T) {
	log := mocks.NewMockLogger(gomock.NewController(t))
	log.EXPECT().Error(gomock.Any()).Do(func(err error) {
		assert.ErrorIs(t, err, domain.ErrUnknownTarget)
	})

	exitCode := run(context.Background(), []string{"build", "bogus"}, new(bytes.Buffer), newProvider(t, &stubBuilder{}, log))
	assert.Equal(t, exitError, exitCode)
}
