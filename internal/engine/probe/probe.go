// Package probe decides once per process whether an optional system feature is available.
package probe

import (
	"context"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// TargetBuilder builds a single target.
type TargetBuilder interface {
	BuildTarget(ctx context.Context, p *domain.Project, spec domain.TargetSpec, force bool) (domain.TargetResult, error)
}

// Prober holds the outcome of the feature probe.
type Prober struct {
	builder TargetBuilder
	store   ports.BuildInfoStore
	tracer  ports.Tracer
	logger  ports.Logger

	mu      sync.Mutex
	outcome domain.ProbeOutcome
}

// New creates a Prober in the unknown state.
func New(builder TargetBuilder, store ports.BuildInfoStore, tracer ports.Tracer, logger ports.Logger) *Prober {
	return &Prober{
		builder: builder,
		store:   store,
		tracer:  tracer,
		logger:  logger,
	}
}

// Probe builds the probe target of p the first time it is called. The build is forced
// unless an earlier run recorded an outcome, in which case an up to date probe target
// is not rebuilt. A failed build yields ProbeUnavailable together with a *domain.ProbeError; only the
// call that ran the build sees that error. Later calls return the memoized outcome.
// Projects without a probe report ProbeUnknown.
func (p *Prober) Probe(ctx context.Context, project *domain.Project) (domain.ProbeOutcome, error) {
	if project.Probe == nil {
		return domain.ProbeUnknown, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.outcome != domain.ProbeUnknown {
		return p.outcome, nil
	}

	spec := project.Probe.Target
	ctx, span := p.tracer.Start(ctx, "probe "+project.Probe.Feature)
	defer span.End()
	span.SetAttribute("kiln.feature", project.Probe.Feature)
	span.SetAttribute("kiln.target", spec.Name)

	force := !p.recorded(project)
	span.SetAttribute("kiln.force", force)

	_, buildErr := p.builder.BuildTarget(ctx, project, spec, force)
	if buildErr != nil && ctx.Err() != nil {
		// Interrupted, not decided.
		return domain.ProbeUnknown, ctx.Err()
	}

	p.outcome = domain.ProbeAvailable
	if buildErr != nil {
		p.outcome = domain.ProbeUnavailable
		span.RecordError(buildErr)
	}
	span.SetAttribute("kiln.outcome", p.outcome.String())
	p.persist(project, spec.Name)

	if buildErr != nil {
		return p.outcome, &domain.ProbeError{Feature: project.Probe.Feature, Err: buildErr}
	}
	return p.outcome, nil
}

// Outcome returns the in-process outcome without probing.
func (p *Prober) Outcome() domain.ProbeOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// Known returns the in-process outcome, falling back to the one persisted by an
// earlier run. It never probes.
func (p *Prober) Known(project *domain.Project) domain.ProbeOutcome {
	if project.Probe == nil {
		return domain.ProbeUnknown
	}
	if outcome := p.Outcome(); outcome != domain.ProbeUnknown {
		return outcome
	}

	rec, err := p.store.GetProbe(project.Layout.Root, project.Probe.Feature)
	if err != nil {
		p.logger.Warn(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()).Error())
		return domain.ProbeUnknown
	}
	if rec == nil {
		return domain.ProbeUnknown
	}
	return domain.ParseProbeOutcome(rec.Outcome)
}

// Apply returns the registry of project under the known outcome.
// project.Registry must be the freshly loaded base registry.
func (p *Prober) Apply(project *domain.Project) *domain.Registry {
	return project.Probe.Apply(project.Registry, p.Known(project))
}

// Reset returns the prober to the unknown state.
func (p *Prober) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = domain.ProbeUnknown
}

// recorded reports whether an earlier run persisted an outcome for the feature.
func (p *Prober) recorded(project *domain.Project) bool {
	rec, err := p.store.GetProbe(project.Layout.Root, project.Probe.Feature)
	if err != nil {
		p.logger.Warn(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()).Error())
		return false
	}
	return rec != nil
}

func (p *Prober) persist(project *domain.Project, target string) {
	err := p.store.PutProbe(project.Layout.Root, domain.ProbeRecord{
		Feature:   project.Probe.Feature,
		Target:    target,
		Outcome:   p.outcome.String(),
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.Warn(zerr.Wrap(err, domain.ErrBuildInfoUpdateFailed.Error()).Error())
	}
}
