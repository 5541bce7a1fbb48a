// Package shell runs the external compiler and linker.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Toolchain implements ports.Toolchain using os/exec.
type Toolchain struct {
	logger ports.Logger
	env    map[string]string
}

// NewToolchain creates a Toolchain. env overrides entries of the process environment
// for every tool invocation.
func NewToolchain(logger ports.Logger, env map[string]string) *Toolchain {
	return &Toolchain{
		logger: logger,
		env:    env,
	}
}

// Compile runs `<program> -c <source> -o <object> <flags...>`. With a depfile the
// compiler is also asked for `-MMD -MF <depfile>`.
func (t *Toolchain) Compile(ctx context.Context, action domain.Action) ([]byte, error) {
	if len(action.Inputs) != 1 {
		return nil, zerr.With(zerr.New("compile expects exactly one input"), "inputs", len(action.Inputs))
	}

	args := make([]string, 0, len(action.Flags)+7)
	args = append(args, "-c", action.Inputs[0], "-o", action.Output)
	if action.Depfile != "" {
		args = append(args, "-MMD", "-MF", action.Depfile)
	}
	args = append(args, action.Flags...)

	return t.run(ctx, action.Program, args)
}

// Link runs `<program> <objects...> -o <output> <flags...>`.
func (t *Toolchain) Link(ctx context.Context, action domain.Action) ([]byte, error) {
	args := make([]string, 0, len(action.Inputs)+len(action.Flags)+2)
	args = append(args, action.Inputs...)
	args = append(args, "-o", action.Output)
	args = append(args, action.Flags...)

	return t.run(ctx, action.Program, args)
}

// run executes program and returns its combined stdout and stderr.
// program may carry leading words, as in "ccache gcc".
func (t *Toolchain) run(ctx context.Context, program string, args []string) ([]byte, error) {
	words := strings.Fields(program)
	if len(words) == 0 {
		return nil, domain.Tag(domain.ErrToolStartFailed, "tool", program)
	}

	name := words[0]
	args = append(words[1:len(words):len(words)], args...)

	cmdEnv := resolveEnvironment(os.Environ(), t.env)

	executable := name
	if !filepath.IsAbs(name) && !strings.ContainsRune(name, filepath.Separator) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // tool comes from kiln.yaml
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	cmd.Env = cmdEnv

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	t.logger.Debug(strings.Join(append([]string{name}, args...), " "))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return out.Bytes(), zerr.With(zerr.Wrap(err, "failed to start tool"), "tool", name)
		}
		return out.Bytes(), zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitErr.ExitCode())
	}

	return out.Bytes(), nil
}

// resolveEnvironment applies overrides on top of the system environment.
// An override of PATH is prepended to the system PATH.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv))
	order := make([]string, 0, len(sysEnv))
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, seen := envMap[k]; !seen {
			order = append(order, k)
		}
		envMap[k] = v
	}

	for k, v := range overrides {
		if _, seen := envMap[k]; !seen {
			order = append(order, k)
		}
		if k == "PATH" && envMap[k] != "" {
			v = v + string(os.PathListSeparator) + envMap[k]
		}
		envMap[k] = v
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the directories named by PATH in env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
