package domain

import (
	"slices"
	"time"
)

// ProbeOutcome is the tri-state result of the optional feature probe.
type ProbeOutcome uint8

const (
	// ProbeUnknown means the probe has not run in this process.
	ProbeUnknown ProbeOutcome = iota
	// ProbeAvailable means the probe target built and linked.
	ProbeAvailable
	// ProbeUnavailable means the probe target failed to build.
	ProbeUnavailable
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeAvailable:
		return "available"
	case ProbeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ParseProbeOutcome is the inverse of ProbeOutcome.String.
func ParseProbeOutcome(s string) ProbeOutcome {
	switch s {
	case "available":
		return ProbeAvailable
	case "unavailable":
		return ProbeUnavailable
	default:
		return ProbeUnknown
	}
}

// ProbeSpec describes the feature probe: a throwaway target whose successful build
// enables extra flags on every registry target.
type ProbeSpec struct {
	Feature      string
	Target       TargetSpec
	CompileFlags []string
	LinkFlags    []string
	// Gates lists the targets whose build triggers the probe. Empty means every build does.
	Gates []string
}

// GatedBy reports whether building the given selection requires the probe outcome.
func (p *ProbeSpec) GatedBy(selected []string, all bool) bool {
	if all || len(p.Gates) == 0 {
		return true
	}
	for _, name := range selected {
		if slices.Contains(p.Gates, name) {
			return true
		}
	}
	return false
}

// Apply returns the registry as seen under the given outcome.
// Only ProbeAvailable changes anything; the base registry is never modified.
func (p *ProbeSpec) Apply(base *Registry, outcome ProbeOutcome) *Registry {
	if p == nil || outcome != ProbeAvailable {
		return base
	}
	return base.WithFlags(p.CompileFlags, p.LinkFlags)
}

// ProbeRecord is the persisted outcome of the last probe run.
type ProbeRecord struct {
	Feature   string    `json:"feature,omitzero"`
	Target    string    `json:"target,omitzero"`
	Outcome   string    `json:"outcome,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
