package domain

import (
	"regexp"
	"slices"
)

var validTargetNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// TargetSpec describes one named build product.
//
// Sources are extension-less identifiers; their order is the order objects are
// handed to the linker. Flag slices are never shared between two TargetSpec values.
type TargetSpec struct {
	Name         string
	Output       string
	Sources      []string
	CompileFlags []string
	LinkFlags    []string
}

// Validate checks the invariants of a single target.
func (t TargetSpec) Validate() error {
	if t.Name == "all" {
		return Tag(ErrReservedTargetName, "target", t.Name)
	}
	if !validTargetNameRegex.MatchString(t.Name) {
		return Tag(ErrInvalidTargetName, "target", t.Name)
	}
	if t.Output == "" {
		return Tag(ErrTargetHasNoOutput, "target", t.Name)
	}
	if len(t.Sources) == 0 {
		return Tag(ErrTargetHasNoSources, "target", t.Name)
	}
	return nil
}

// Clone returns a deep copy of the target.
func (t TargetSpec) Clone() TargetSpec {
	return TargetSpec{
		Name:         t.Name,
		Output:       t.Output,
		Sources:      slices.Clone(t.Sources),
		CompileFlags: slices.Clone(t.CompileFlags),
		LinkFlags:    slices.Clone(t.LinkFlags),
	}
}

// WithFlags returns a copy of the target with the given flags appended.
func (t TargetSpec) WithFlags(compileFlags, linkFlags []string) TargetSpec {
	c := t.Clone()
	c.CompileFlags = append(c.CompileFlags, compileFlags...)
	c.LinkFlags = append(c.LinkFlags, linkFlags...)
	return c
}

// HasSource reports whether source is one of the target's sources.
func (t TargetSpec) HasSource(source string) bool {
	return slices.Contains(t.Sources, source)
}
