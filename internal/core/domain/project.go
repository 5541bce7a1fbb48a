package domain

import "slices"

// AllTargets is the reserved selector for every registry target.
const AllTargets = "all"

// Toolchain names the external programs used for compiling and linking.
type Toolchain struct {
	Compiler string
	Linker   string
	// Depfiles makes every compile report the headers it read, so header edits
	// invalidate the objects that include them.
	Depfiles bool
}

// Project is everything a kiln.yaml describes.
type Project struct {
	Layout    Layout
	Toolchain Toolchain
	Registry  *Registry
	Probe     *ProbeSpec
	Shortcuts map[string]string
}

// Resolve maps user supplied names and shortcuts onto registry target names.
// No names, or the name "all", selects every target. The result keeps the
// caller's order and drops duplicates. all reports whether every target was selected.
func (p *Project) Resolve(names []string) (selected []string, all bool, err error) {
	if len(names) == 0 || slices.Contains(names, AllTargets) {
		return p.Registry.Names(), true, nil
	}

	selected = make([]string, 0, len(names))
	for _, name := range names {
		resolved := name
		if target, ok := p.Shortcuts[name]; ok {
			resolved = target
		}
		if !p.Registry.Has(resolved) {
			return nil, false, Tag(ErrUnknownTarget, "target", name)
		}
		if !slices.Contains(selected, resolved) {
			selected = append(selected, resolved)
		}
	}
	return selected, len(selected) == p.Registry.Len(), nil
}

// CompileAction returns the compile step for one source of spec.
func (p *Project) CompileAction(spec TargetSpec, source string) Action {
	return Action{
		Kind:    ActionCompile,
		Target:  spec.Name,
		Source:  source,
		Program: p.Toolchain.Compiler,
		Inputs:  []string{p.Layout.SourcePath(source)},
		Output:  p.Layout.ObjectPath(spec.Name, source),
		Flags:   slices.Clone(spec.CompileFlags),
		Depfile: p.depfile(spec.Name, source),
	}
}

func (p *Project) depfile(target, source string) string {
	if !p.Toolchain.Depfiles {
		return ""
	}
	return p.Layout.DepfilePath(target, source)
}

// LinkAction returns the link step of spec. Objects follow the order of spec.Sources.
func (p *Project) LinkAction(spec TargetSpec) Action {
	objects := make([]string, 0, len(spec.Sources))
	for _, source := range spec.Sources {
		objects = append(objects, p.Layout.ObjectPath(spec.Name, source))
	}
	return Action{
		Kind:    ActionLink,
		Target:  spec.Name,
		Program: p.Toolchain.Linker,
		Inputs:  objects,
		Output:  p.Layout.ArtifactPath(spec),
		Flags:   slices.Clone(spec.LinkFlags),
	}
}
