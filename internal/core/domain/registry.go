package domain

import (
	"maps"
	"slices"
)

// Registry is an immutable catalog of targets keyed by name.
// Every mutation returns a new Registry and leaves the receiver untouched.
type Registry struct {
	targets map[string]TargetSpec
	names   []string
}

// NewRegistry validates the given targets and builds a registry from them.
func NewRegistry(specs ...TargetSpec) (*Registry, error) {
	r := &Registry{
		targets: make(map[string]TargetSpec, len(specs)),
		names:   make([]string, 0, len(specs)),
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.targets[spec.Name]; exists {
			return nil, Tag(ErrTargetAlreadyExists, "target", spec.Name)
		}
		r.targets[spec.Name] = spec.Clone()
		r.names = append(r.names, spec.Name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Get returns a copy of the named target.
func (r *Registry) Get(name string) (TargetSpec, error) {
	spec, ok := r.targets[name]
	if !ok {
		return TargetSpec{}, Tag(ErrUnknownTarget, "target", name)
	}
	return spec.Clone(), nil
}

// Has reports whether the named target exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.targets[name]
	return ok
}

// Names returns every target name in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of targets.
func (r *Registry) Len() int {
	return len(r.names)
}

// Targets returns copies of every target in name order.
func (r *Registry) Targets() []TargetSpec {
	out := make([]TargetSpec, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.targets[name].Clone())
	}
	return out
}

// AppendFlags returns a registry where only the named target has the flags appended.
func (r *Registry) AppendFlags(name string, compileFlags, linkFlags []string) (*Registry, error) {
	spec, ok := r.targets[name]
	if !ok {
		return nil, Tag(ErrUnknownTarget, "target", name)
	}
	next := r.clone()
	next.targets[name] = spec.WithFlags(compileFlags, linkFlags)
	return next, nil
}

// WithFlags returns a registry where every target has the flags appended.
func (r *Registry) WithFlags(compileFlags, linkFlags []string) *Registry {
	next := r.clone()
	for name, spec := range r.targets {
		next.targets[name] = spec.WithFlags(compileFlags, linkFlags)
	}
	return next
}

// TargetsWithSource returns the names of targets that compile the given source.
func (r *Registry) TargetsWithSource(source string) []string {
	var out []string
	for _, name := range r.names {
		if r.targets[name].HasSource(source) {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) clone() *Registry {
	return &Registry{
		targets: maps.Clone(r.targets),
		names:   slices.Clone(r.names),
	}
}
