package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Watch builds the selected targets, then rebuilds the targets owning each changed
// source or recorded header until ctx is cancelled. A change to the configuration rebuilds the whole selection.
// Build failures are logged and watching continues.
func (a *App) Watch(ctx context.Context, names []string, opts BuildOptions) error {
	project, err := a.load()
	if err != nil {
		return err
	}
	if _, _, err := project.Resolve(names); err != nil {
		return zerr.Wrap(err, "failed to resolve targets")
	}

	if err := a.watcher.Start(ctx, project.Layout.Root); err != nil {
		return err
	}
	defer func() {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn(err.Error())
		}
	}()

	a.rebuild(ctx, names, opts)
	a.logger.Info("watching " + project.Layout.Root)

	for event := range a.watcher.Events() {
		if ctx.Err() != nil {
			break
		}

		if slices.ContainsFunc(event.Paths, isConfig) {
			reloaded, err := a.load()
			if err != nil {
				a.logger.Error(err)
				continue
			}
			project = reloaded
			a.logger.Info(domain.ConfigFileName + " changed")
			a.rebuild(ctx, names, opts)
			continue
		}

		affected, err := affectedTargets(project, names, event.Paths, a.headerOwners(project.Layout))
		if err != nil {
			a.logger.Error(err)
			continue
		}
		if len(affected) == 0 {
			continue
		}

		a.logger.Info(fmt.Sprintf("changed: %s", strings.Join(relPaths(project.Layout, event.Paths), ", ")))
		a.rebuild(ctx, affected, opts)
	}
	return nil
}

func (a *App) rebuild(ctx context.Context, names []string, opts BuildOptions) {
	_, err := a.Build(ctx, names, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error(err)
	}
}

// headerOwners maps every header recorded by the last compiles to the targets that read it.
func (a *App) headerOwners(layout domain.Layout) map[string][]string {
	records, err := a.store.List(layout.Root)
	if err != nil {
		a.logger.Debug(err.Error())
		return nil
	}

	owners := make(map[string][]string)
	for _, rec := range records {
		for _, dep := range rec.Deps {
			path := layout.Abs(dep)
			if !slices.Contains(owners[path], rec.Target) {
				owners[path] = append(owners[path], rec.Target)
			}
		}
	}
	return owners
}

// affectedTargets returns the selected targets that compile one of the changed paths
// or, per owners, include it.
func affectedTargets(project *domain.Project, names []string, paths []string, owners map[string][]string) ([]string, error) {
	selected, _, err := project.Resolve(names)
	if err != nil {
		return nil, err
	}

	var affected []string
	add := func(targets []string) {
		for _, target := range targets {
			if slices.Contains(selected, target) && !slices.Contains(affected, target) {
				affected = append(affected, target)
			}
		}
	}
	for _, path := range paths {
		add(owners[filepath.Clean(path)])
		if source, ok := sourceID(project.Layout, path); ok {
			add(project.Registry.TargetsWithSource(source))
		}
	}
	slices.Sort(affected)
	return affected, nil
}

// sourceID maps a path inside the source directory back to its source identifier.
func sourceID(layout domain.Layout, path string) (string, bool) {
	if filepath.Dir(path) != filepath.Clean(layout.SourceDir) || filepath.Ext(path) != layout.SourceExt {
		return "", false
	}
	return strings.TrimSuffix(filepath.Base(path), layout.SourceExt), true
}

func isConfig(path string) bool {
	return filepath.Base(path) == domain.ConfigFileName
}

func relPaths(layout domain.Layout, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, layout.Rel(p))
	}
	return out
}
