package domain

import "path/filepath"

const (
	// KilnDirName is the name of the internal metadata directory.
	KilnDirName = ".kiln"

	// StateFileName is the name of the build info store file inside KilnDirName.
	StateFileName = "state.json"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "kiln.yaml"

	// DefaultBuildDir is the build directory used when the configuration names none.
	DefaultBuildDir = "build"

	// DefaultSourceExt is the source file extension used when the configuration names none.
	DefaultSourceExt = ".c"

	// DefaultObjectExt is the object file extension used when the configuration names none.
	DefaultObjectExt = ".o"

	// DepfileExt is the extension of the header dependency files written next to objects.
	DepfileExt = ".d"

	// DefaultCompiler is the compiler program used when the configuration names none.
	DefaultCompiler = "gcc"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the path of the build info store relative to the project root.
// It joins .kiln and state.json.
func DefaultStatePath() string {
	return filepath.Join(KilnDirName, StateFileName)
}

// OutputPath returns buildDir/target/base(filename).
// Only the final path element of filename is kept.
func OutputPath(buildDir, target, filename string) string {
	return filepath.Join(buildDir, target, filepath.Base(filename))
}

// Layout describes where sources are read from and where artifacts are written.
// All directories are absolute.
type Layout struct {
	Root      string
	BuildDir  string
	SourceDir string
	SourceExt string
	ObjectExt string
}

// TargetDir returns the per-target output directory.
func (l Layout) TargetDir(target string) string {
	return filepath.Join(l.BuildDir, target)
}

// SourcePath returns the path of a source identifier with its extension.
func (l Layout) SourcePath(source string) string {
	return filepath.Join(l.SourceDir, source+l.SourceExt)
}

// ObjectPath returns the object file produced for source inside target's directory.
func (l Layout) ObjectPath(target, source string) string {
	return OutputPath(l.BuildDir, target, source+l.ObjectExt)
}

// DepfilePath returns the dependency file the compiler writes next to source's object.
func (l Layout) DepfilePath(target, source string) string {
	return OutputPath(l.BuildDir, target, source+DepfileExt)
}

// ArtifactPath returns the final artifact path of a target.
func (l Layout) ArtifactPath(spec TargetSpec) string {
	return OutputPath(l.BuildDir, spec.Name, spec.Output)
}

// StatePath returns the absolute path of the build info store.
func (l Layout) StatePath() string {
	return filepath.Join(l.Root, DefaultStatePath())
}

// Rel returns path relative to the project root in slash form. Paths outside the root
// keep their leading ../ elements; path comes back unchanged only when no relative
// form exists, as for a relative path against an absolute root.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a root-relative path produced by Rel.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}
