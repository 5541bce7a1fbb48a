// Package config provides the configuration loader for kiln.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using kiln.yaml files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the configuration. location is either a kiln.yaml file or a directory
// from which kiln.yaml is searched upwards.
func (l *Loader) Load(location string) (*domain.Project, error) {
	path, err := l.findConfiguration(location)
	if err != nil {
		return nil, err
	}

	kf, err := readAndUnmarshalYAML(path)
	if err != nil {
		return nil, err
	}

	root, err := resolveRoot(filepath.Dir(path), kf.Root)
	if err != nil {
		return nil, err
	}

	return buildProject(root, kf)
}

// findConfiguration returns the absolute path of the configuration file for location.
func (l *Loader) findConfiguration(location string) (string, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", location)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", abs)
	}
	if !info.IsDir() {
		return abs, nil
	}

	for dir := abs; ; {
		candidate := filepath.Join(dir, domain.ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			if dir != abs {
				l.Logger.Debug("using " + candidate)
			}
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", domain.Tag(domain.ErrConfigNotFound, "start", abs)
		}
		dir = parent
	}
}

func readAndUnmarshalYAML(path string) (*Kilnfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	var kf Kilnfile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&kf); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
	}

	if kf.Version != "" && kf.Version != "1" {
		return nil, domain.Tag(domain.ErrUnsupportedVersion, "version", kf.Version)
	}

	return &kf, nil
}

// resolveRoot applies the optional root override, relative to the configuration directory.
func resolveRoot(configDir, override string) (string, error) {
	if override == "" {
		return configDir, nil
	}
	root := override
	if !filepath.IsAbs(root) {
		root = filepath.Join(configDir, root)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "invalid root"), "root", root)
	}
	if !info.IsDir() {
		return "", zerr.With(zerr.New("root is not a directory"), "root", root)
	}
	return filepath.Clean(root), nil
}

func buildProject(root string, kf *Kilnfile) (*domain.Project, error) {
	if len(kf.Targets) == 0 {
		return nil, domain.ErrNoTargetsDefined
	}

	specs := make([]domain.TargetSpec, 0, len(kf.Targets))
	for name, dto := range kf.Targets {
		specs = append(specs, toTargetSpec(name, dto))
	}

	registry, err := domain.NewRegistry(specs...)
	if err != nil {
		return nil, err
	}

	for shortcut, target := range kf.Shortcuts {
		if !registry.Has(target) {
			return nil, zerr.With(domain.Tag(domain.ErrUnknownShortcut, "shortcut", shortcut), "target", target)
		}
	}

	probe, err := buildProbe(kf.Probe, registry)
	if err != nil {
		return nil, err
	}

	compiler := strings.TrimSpace(kf.Compiler)
	if compiler == "" {
		compiler = domain.DefaultCompiler
	}
	linker := strings.TrimSpace(kf.Linker)
	if linker == "" {
		linker = compiler
	}

	return &domain.Project{
		Layout: domain.Layout{
			Root:      root,
			BuildDir:  underRoot(root, kf.BuildDir, domain.DefaultBuildDir),
			SourceDir: underRoot(root, kf.SourceDir, "."),
			SourceExt: withDefault(kf.SourceExt, domain.DefaultSourceExt),
			ObjectExt: withDefault(kf.ObjectExt, domain.DefaultObjectExt),
		},
		Toolchain: domain.Toolchain{
			Compiler: compiler,
			Linker:   linker,
			Depfiles: kf.Depfiles == nil || *kf.Depfiles,
		},
		Registry:  registry,
		Probe:     probe,
		Shortcuts: kf.Shortcuts,
	}, nil
}

func buildProbe(dto *ProbeDTO, registry *domain.Registry) (*domain.ProbeSpec, error) {
	if dto == nil {
		return nil, nil
	}

	target := toTargetSpec(dto.Target.Name, dto.Target.TargetDTO)
	if err := target.Validate(); err != nil {
		return nil, zerr.Wrap(err, "invalid probe target")
	}
	if registry.Has(target.Name) {
		return nil, zerr.Wrap(domain.Tag(domain.ErrTargetAlreadyExists, "target", target.Name), "invalid probe target")
	}

	for _, gate := range dto.Gates {
		if !registry.Has(gate) {
			return nil, domain.Tag(domain.ErrUnknownGate, "target", gate)
		}
	}

	feature := dto.Feature
	if feature == "" {
		feature = strings.ToLower(target.Name)
	}

	return &domain.ProbeSpec{
		Feature:      feature,
		Target:       target,
		CompileFlags: slices.Clone(dto.CFlags),
		LinkFlags:    slices.Clone(dto.LFlags),
		Gates:        slices.Clone(dto.Gates),
	}, nil
}

func toTargetSpec(name string, dto TargetDTO) domain.TargetSpec {
	return domain.TargetSpec{
		Name:         name,
		Output:       dto.Output,
		Sources:      slices.Clone(dto.Sources),
		CompileFlags: slices.Clone(dto.CFlags),
		LinkFlags:    slices.Clone(dto.LFlags),
	}
}

func underRoot(root, dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
