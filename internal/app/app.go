// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// TargetBuilder builds and plans single targets.
type TargetBuilder interface {
	BuildTarget(ctx context.Context, p *domain.Project, spec domain.TargetSpec, force bool) (domain.TargetResult, error)
	Plan(p *domain.Project, spec domain.TargetSpec) (domain.TargetStatus, error)
}

// FeatureProber decides whether the project's optional feature is available.
type FeatureProber interface {
	Probe(ctx context.Context, p *domain.Project) (domain.ProbeOutcome, error)
	Known(p *domain.Project) domain.ProbeOutcome
	Apply(p *domain.Project) *domain.Registry
	Reset()
}

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	builder      TargetBuilder
	prober       FeatureProber
	store        ports.BuildInfoStore
	fs           ports.FileSystem
	watcher      ports.Watcher
	tracer       ports.Tracer
	logger       ports.Logger

	configPath string
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	builder TargetBuilder,
	prober FeatureProber,
	store ports.BuildInfoStore,
	fs ports.FileSystem,
	watcher ports.Watcher,
	tracer ports.Tracer,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		builder:      builder,
		prober:       prober,
		store:        store,
		fs:           fs,
		watcher:      watcher,
		tracer:       tracer,
		logger:       log,
		configPath:   ".",
	}
}

// UseConfig sets the config file, or the directory to search upwards from.
func (a *App) UseConfig(path string) {
	if path != "" {
		a.configPath = path
	}
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	// Force rebuilds every step regardless of staleness.
	Force bool
	// Jobs bounds how many targets build at once. Values below 1 mean 1.
	Jobs int
}

// Build brings the selected targets up to date. No names, or "all", selects every target.
// A failing target does not stop the others; all failures are returned together.
func (a *App) Build(ctx context.Context, names []string, opts BuildOptions) ([]domain.TargetResult, error) {
	project, err := a.load()
	if err != nil {
		return nil, err
	}

	selected, all, err := project.Resolve(names)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve targets")
	}

	if project.Probe != nil && project.Probe.GatedBy(selected, all) {
		if err := a.probe(ctx, project); err != nil {
			return nil, err
		}
	}
	registry := a.prober.Apply(project)
	patched := *project
	patched.Registry = registry

	results := make([]domain.TargetResult, len(selected))
	errs := make([]error, len(selected))

	var g errgroup.Group
	g.SetLimit(max(opts.Jobs, 1))
	for i, name := range selected {
		g.Go(func() error {
			results[i], errs[i] = a.buildOne(ctx, &patched, name, opts.Force)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if err := errors.Join(errs...); err != nil {
		return results, errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return results, nil
}

func (a *App) buildOne(ctx context.Context, p *domain.Project, name string, force bool) (domain.TargetResult, error) {
	spec, err := p.Registry.Get(name)
	if err != nil {
		return domain.TargetResult{Target: name}, err
	}

	ctx, span := a.tracer.Start(ctx, name)
	defer span.End()
	span.SetAttribute("kiln.target", name)
	span.SetAttribute("kiln.force", force)

	result, err := a.builder.BuildTarget(ctx, p, spec, force)
	if err != nil {
		span.RecordError(err)
		return result, zerr.With(zerr.Wrap(err, domain.ErrTargetBuildFailed.Error()), "target", name)
	}

	if result.UpToDate() {
		a.logger.Info(fmt.Sprintf("%s is up to date", name))
	} else {
		a.logger.Info(fmt.Sprintf("built %s (%s)", name, p.Layout.Rel(result.Artifact)))
	}
	return result, nil
}

// probe runs the feature probe. A failed probe is a notice, not an error.
func (a *App) probe(ctx context.Context, project *domain.Project) error {
	_, err := a.prober.Probe(ctx, project)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrProbeFailed) {
		return err
	}

	a.logger.Warn(fmt.Sprintf("no %s support found", project.Probe.Feature))
	a.logger.Debug(err.Error(), "target", project.Probe.Target.Name)
	return nil
}

// Check reports which steps a build of the selected targets would run.
// It never probes and never writes.
func (a *App) Check(_ context.Context, names []string) (domain.CheckReport, error) {
	project, err := a.load()
	if err != nil {
		return domain.CheckReport{}, err
	}

	selected, _, err := project.Resolve(names)
	if err != nil {
		return domain.CheckReport{}, zerr.Wrap(err, "failed to resolve targets")
	}

	report := domain.CheckReport{Layout: project.Layout, Probe: a.prober.Known(project)}
	patched := *project
	patched.Registry = a.prober.Apply(project)

	for _, name := range selected {
		spec, err := patched.Registry.Get(name)
		if err != nil {
			return report, err
		}
		status, err := a.builder.Plan(&patched, spec)
		if err != nil {
			return report, zerr.With(zerr.Wrap(err, "failed to check target"), "target", name)
		}
		report.Targets = append(report.Targets, status)
	}
	return report, nil
}

// Clean removes every output kiln recorded, the per-target directories left empty
// and the build records. When the records cannot be read, every output the
// configuration can produce is removed instead.
func (a *App) Clean(_ context.Context) error {
	project, err := a.load()
	if err != nil {
		return err
	}
	layout := project.Layout

	outputs, err := a.recordedOutputs(layout)
	if err != nil {
		a.logger.Warn(zerr.Wrap(err, "build records are unreadable, removing every configured output").Error())
		outputs = configuredOutputs(project)
	}

	var errs error
	removed := 0
	dirs := make([]string, 0, len(outputs))
	for _, path := range outputs {
		if dir := filepath.Dir(path); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
		_, exists, err := a.fs.ModTime(path)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if !exists {
			continue
		}
		if err := a.fs.Remove(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, domain.ErrFailedToCleanOutput.Error()), "file", layout.Rel(path)))
			continue
		}
		a.logger.Debug("removed", "output", layout.Rel(path))
		removed++
	}

	// Deepest first so nested directories empty out before their parents.
	slices.SortFunc(dirs, func(x, y string) int { return depth(y) - depth(x) })
	for _, dir := range append(dirs, layout.BuildDir) {
		if err := a.fs.RemoveEmptyDir(dir); err != nil {
			a.logger.Debug(err.Error())
		}
	}

	if err := a.store.Clear(layout.Root); err != nil {
		errs = errors.Join(errs, err)
	}
	a.prober.Reset()

	if errs != nil {
		return errs
	}
	a.logger.Info(fmt.Sprintf("removed %d build outputs", removed))
	return nil
}

func (a *App) recordedOutputs(layout domain.Layout) ([]string, error) {
	records, err := a.store.List(layout.Root)
	if err != nil {
		return nil, err
	}
	outputs := make([]string, 0, len(records))
	for _, rec := range records {
		outputs = append(outputs, layout.Abs(rec.Output))
	}
	return outputs, nil
}

// configuredOutputs lists every object, depfile and artifact the project's targets,
// the probe target included, can produce.
func configuredOutputs(project *domain.Project) []string {
	specs := project.Registry.Targets()
	if project.Probe != nil {
		specs = append(specs, project.Probe.Target)
	}

	layout := project.Layout
	var outputs []string
	for _, spec := range specs {
		for _, source := range spec.Sources {
			outputs = append(outputs, layout.ObjectPath(spec.Name, source), layout.DepfilePath(spec.Name, source))
		}
		outputs = append(outputs, layout.ArtifactPath(spec))
	}
	return outputs
}

// ProbeResult is the outcome of an explicit probe run.
type ProbeResult struct {
	Feature string
	Target  string
	Outcome domain.ProbeOutcome
}

// Probe runs the feature probe now, discarding the outcome memoized by this process.
// An unavailable feature is a result, not an error.
func (a *App) Probe(ctx context.Context) (ProbeResult, error) {
	project, err := a.load()
	if err != nil {
		return ProbeResult{}, err
	}
	if project.Probe == nil {
		return ProbeResult{}, domain.ErrNoProbeConfigured
	}

	a.prober.Reset()
	if err := a.probe(ctx, project); err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{
		Feature: project.Probe.Feature,
		Target:  project.Probe.Target.Name,
		Outcome: a.prober.Known(project),
	}, nil
}

// Rebuild cleans and then force-builds every target.
func (a *App) Rebuild(ctx context.Context, opts BuildOptions) ([]domain.TargetResult, error) {
	if err := a.Clean(ctx); err != nil {
		return nil, err
	}
	opts.Force = true
	return a.Build(ctx, nil, opts)
}

// Listing describes the configured targets as a build would see them.
type Listing struct {
	Targets   []domain.TargetSpec
	Shortcuts map[string]string
	Probe     *domain.ProbeSpec
	Outcome   domain.ProbeOutcome
}

// Targets lists the registry under the known probe outcome.
func (a *App) Targets(_ context.Context) (Listing, error) {
	project, err := a.load()
	if err != nil {
		return Listing{}, err
	}

	return Listing{
		Targets:   a.prober.Apply(project).Targets(),
		Shortcuts: project.Shortcuts,
		Probe:     project.Probe,
		Outcome:   a.prober.Known(project),
	}, nil
}

// Shutdown flushes pending telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	if s, ok := a.tracer.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}

func depth(path string) int {
	return strings.Count(path, string(filepath.Separator))
}

func (a *App) load() (*domain.Project, error) {
	project, err := a.configLoader.Load(a.configPath)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return project, nil
}
