// Package builder compiles and links targets, skipping steps whose outputs are up to date.
package builder

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builder runs compile and link actions through the toolchain and records what it produced.
type Builder struct {
	toolchain ports.Toolchain
	fs        ports.FileSystem
	hasher    ports.Hasher
	store     ports.BuildInfoStore
	tracer    ports.Tracer
	logger    ports.Logger
}

// New creates a Builder.
func New(
	toolchain ports.Toolchain,
	fs ports.FileSystem,
	hasher ports.Hasher,
	store ports.BuildInfoStore,
	tracer ports.Tracer,
	logger ports.Logger,
) *Builder {
	return &Builder{
		toolchain: toolchain,
		fs:        fs,
		hasher:    hasher,
		store:     store,
		tracer:    tracer,
		logger:    logger,
	}
}

// OutputPath resolves buildDir/target/base(filename) and creates the target directory.
// Calling it again for the same target is harmless.
func (b *Builder) OutputPath(layout domain.Layout, target, filename string) (string, error) {
	dir := layout.TargetDir(target)
	if err := b.fs.MkdirAll(dir); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrOutputDirCreateFailed.Error()), "path", dir)
	}
	return domain.OutputPath(layout.BuildDir, target, filename), nil
}

// CompileOne compiles one source of spec into its object file and returns the object path.
// extraFlags follow the target's own compile flags.
func (b *Builder) CompileOne(
	ctx context.Context,
	p *domain.Project,
	spec domain.TargetSpec,
	source string,
	extraFlags ...string,
) (string, error) {
	action := p.CompileAction(spec, source)
	action.Flags = append(action.Flags, extraFlags...)

	if err := b.prepareOutput(p.Layout, action); err != nil {
		return "", err
	}

	ctx, span := b.tracer.Start(ctx, "compile "+spec.Name+"/"+source)
	defer span.End()
	span.SetAttribute("kiln.target", spec.Name)
	span.SetAttribute("kiln.source", source)

	out, err := b.toolchain.Compile(ctx, action)
	if len(out) > 0 {
		_, _ = span.Write(out)
	}
	if err != nil {
		span.RecordError(err)
		b.removeDepfile(action)
		return "", &domain.CompileError{
			Target:     spec.Name,
			Source:     source,
			ToolOutput: string(out),
			Err:        err,
		}
	}

	deps := b.headers(p.Layout, action)
	span.SetAttribute("kiln.headers", len(deps))
	if len(deps) > 0 {
		b.logger.Debug("includes "+strings.Join(deps, " "), "target", spec.Name, "source", source)
	}
	b.record(p.Layout, action, deps)
	return action.Output, nil
}

// LinkOne links the objects of spec, in source order, into the target's artifact.
// extraFlags follow the target's own link flags.
// Every object must exist; the toolchain is not invoked otherwise.
func (b *Builder) LinkOne(
	ctx context.Context,
	p *domain.Project,
	spec domain.TargetSpec,
	extraFlags ...string,
) (string, error) {
	action := p.LinkAction(spec)
	action.Flags = append(action.Flags, extraFlags...)

	var missing []string
	for _, object := range action.Inputs {
		_, ok, err := b.fs.ModTime(object)
		if err != nil {
			return "", err
		}
		if !ok {
			missing = append(missing, p.Layout.Rel(object))
		}
	}
	if len(missing) > 0 {
		return "", &domain.LinkError{Target: spec.Name, Output: spec.Output, Missing: missing}
	}

	if err := b.prepareOutput(p.Layout, action); err != nil {
		return "", err
	}

	ctx, span := b.tracer.Start(ctx, "link "+spec.Name)
	defer span.End()
	span.SetAttribute("kiln.target", spec.Name)
	span.SetAttribute("kiln.objects", len(action.Inputs))

	out, err := b.toolchain.Link(ctx, action)
	if len(out) > 0 {
		_, _ = span.Write(out)
	}
	if err != nil {
		span.RecordError(err)
		return "", &domain.LinkError{
			Target:     spec.Name,
			Output:     spec.Output,
			ToolOutput: string(out),
			Err:        err,
		}
	}

	b.record(p.Layout, action, nil)
	return action.Output, nil
}

// BuildTarget compiles the stale sources of spec in order and links it when needed.
// With force every step runs. The first failing step ends the target.
func (b *Builder) BuildTarget(
	ctx context.Context,
	p *domain.Project,
	spec domain.TargetSpec,
	force bool,
) (domain.TargetResult, error) {
	result := domain.TargetResult{Target: spec.Name, Artifact: p.Layout.ArtifactPath(spec)}

	status, err := b.plan(p, spec, force)
	if err != nil {
		return result, err
	}

	for _, step := range status.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		b.logger.Debug(string(step.Reason), "output", p.Layout.Rel(step.Action.Output))

		switch step.Action.Kind {
		case domain.ActionCompile:
			if _, err := b.CompileOne(ctx, p, spec, step.Action.Source); err != nil {
				return result, err
			}
			result.Compiled = append(result.Compiled, step.Action.Source)
		case domain.ActionLink:
			if _, err := b.LinkOne(ctx, p, spec); err != nil {
				return result, err
			}
			result.Linked = true
		}
	}

	return result, nil
}

// Plan reports the steps a build of spec would run and why. It never writes.
func (b *Builder) Plan(p *domain.Project, spec domain.TargetSpec) (domain.TargetStatus, error) {
	return b.plan(p, spec, false)
}

func (b *Builder) plan(p *domain.Project, spec domain.TargetSpec, force bool) (domain.TargetStatus, error) {
	status := domain.TargetStatus{Target: spec.Name}

	for _, source := range spec.Sources {
		action := p.CompileAction(spec, source)
		reason := domain.ReasonForced
		if !force {
			var err error
			if reason, err = b.isStale(p.Layout, action); err != nil {
				return status, err
			}
		}
		if reason != domain.ReasonUpToDate {
			status.Steps = append(status.Steps, domain.PlannedStep{Action: action, Reason: reason})
		}
	}

	link := p.LinkAction(spec)
	reason := domain.ReasonForced
	if !force {
		var err error
		if reason, err = b.isStale(p.Layout, link); err != nil {
			return status, err
		}
		if reason == domain.ReasonUpToDate && len(status.Steps) > 0 {
			reason = domain.ReasonInputRebuilt
		}
	}
	if reason != domain.ReasonUpToDate {
		status.Steps = append(status.Steps, domain.PlannedStep{Action: link, Reason: reason})
	}

	return status, nil
}

// isStale returns why action has to run, or ReasonUpToDate.
func (b *Builder) isStale(layout domain.Layout, action domain.Action) (domain.StaleReason, error) {
	outTime, ok, err := b.fs.ModTime(action.Output)
	if err != nil {
		return "", err
	}
	if !ok {
		return domain.ReasonMissingOutput, nil
	}

	info, err := b.store.Get(layout.Root, layout.Rel(action.Output))
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}
	if info == nil {
		return domain.ReasonNoRecord, nil
	}
	if info.CommandHash != b.hasher.ComputeActionHash(action) {
		return domain.ReasonCommandChanged, nil
	}

	for _, input := range action.Inputs {
		inTime, exists, err := b.fs.ModTime(input)
		if err != nil {
			return "", err
		}
		if !exists {
			return domain.ReasonInputMissing, nil
		}
		if inTime.After(outTime) {
			return domain.ReasonInputNewer, nil
		}
	}

	for _, dep := range info.Deps {
		depTime, exists, err := b.fs.ModTime(layout.Abs(dep))
		if err != nil {
			return "", err
		}
		if !exists {
			return domain.ReasonHeaderMissing, nil
		}
		if depTime.After(outTime) {
			return domain.ReasonHeaderNewer, nil
		}
	}

	hash, err := b.hasher.ComputeFileHash(action.Output)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrOutputHashComputationFailed.Error())
	}
	if hash != info.OutputHash {
		return domain.ReasonOutputModified, nil
	}

	return domain.ReasonUpToDate, nil
}

// prepareOutput creates the target directory and removes the previous output,
// so a failed step never leaves an outdated file behind.
func (b *Builder) prepareOutput(layout domain.Layout, action domain.Action) error {
	if _, err := b.OutputPath(layout, action.Target, filepath.Base(action.Output)); err != nil {
		return err
	}
	if err := b.fs.Remove(action.Output); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrFailedToCleanOutput.Error()), "file", layout.Rel(action.Output))
	}
	b.removeDepfile(action)
	return nil
}

// headers reads the depfile the compiler wrote for action and returns the files it
// names besides the source, relative to the project root. The depfile is removed
// afterwards. A compiler that wrote none yields no headers.
func (b *Builder) headers(layout domain.Layout, action domain.Action) []string {
	if action.Depfile == "" {
		return nil
	}
	defer b.removeDepfile(action)

	data, ok, err := b.fs.ReadFile(action.Depfile)
	if err != nil {
		b.logger.Warn(err.Error())
		return nil
	}
	if !ok {
		return nil
	}

	source := filepath.Clean(action.Inputs[0])
	var deps []string
	for _, dep := range domain.ParseDepfile(data) {
		// Relative entries are relative to the directory the compiler ran in, which is ours.
		abs, err := filepath.Abs(dep)
		if err != nil || abs == source {
			continue
		}
		if rel := layout.Rel(abs); !slices.Contains(deps, rel) {
			deps = append(deps, rel)
		}
	}
	return deps
}

func (b *Builder) removeDepfile(action domain.Action) {
	if action.Depfile == "" {
		return
	}
	if err := b.fs.Remove(action.Depfile); err != nil {
		b.logger.Debug(err.Error(), "target", action.Target, "source", action.Source)
	}
}

// record stores the build info of a finished action. Failures only warn.
func (b *Builder) record(layout domain.Layout, action domain.Action, deps []string) {
	hash, err := b.hasher.ComputeFileHash(action.Output)
	if err != nil {
		b.logger.Warn(zerr.Wrap(err, domain.ErrOutputHashComputationFailed.Error()).Error())
		return
	}

	err = b.store.Put(layout.Root, domain.BuildInfo{
		Output:      layout.Rel(action.Output),
		Target:      action.Target,
		CommandHash: b.hasher.ComputeActionHash(action),
		OutputHash:  hash,
		Deps:        deps,
		Timestamp:   time.Now(),
	})
	if err != nil {
		b.logger.Warn(zerr.Wrap(err, domain.ErrBuildInfoUpdateFailed.Error()).Error())
	}
}
