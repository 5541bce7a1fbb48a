package domain

import (
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	// ErrUnknownTarget is returned when a requested target is not in the registry.
	ErrUnknownTarget = zerr.New("unknown target")

	// ErrTargetAlreadyExists is returned when two targets share a name.
	ErrTargetAlreadyExists = zerr.New("target already exists")

	// ErrTargetHasNoSources is returned when a target declares an empty source list.
	ErrTargetHasNoSources = zerr.New("target has no sources")

	// ErrTargetHasNoOutput is returned when a target does not name its artifact.
	ErrTargetHasNoOutput = zerr.New("target has no output filename")

	// ErrInvalidTargetName is returned when a target name contains invalid characters.
	ErrInvalidTargetName = zerr.New("target name can only contain alphanumeric characters, dots, hyphens and underscores")

	// ErrReservedTargetName is returned when a target uses a reserved name (e.g., "all").
	ErrReservedTargetName = zerr.New("target name 'all' is reserved")

	// ErrNoTargetsDefined is returned when a configuration declares no targets.
	ErrNoTargetsDefined = zerr.New("no targets defined")

	// ErrUnknownShortcut is returned when a shortcut points at a target that does not exist.
	ErrUnknownShortcut = zerr.New("shortcut refers to an unknown target")

	// ErrUnknownGate is returned when a probe gate names a target that does not exist.
	ErrUnknownGate = zerr.New("probe gate refers to an unknown target")

	// ErrUnsupportedVersion is returned when the configuration version is not understood.
	ErrUnsupportedVersion = zerr.New("unsupported configuration version")

	// ErrCompileFailed is the sentinel matched by every *CompileError.
	ErrCompileFailed = zerr.New("compilation failed")

	// ErrLinkFailed is the sentinel matched by every *LinkError.
	ErrLinkFailed = zerr.New("linking failed")

	// ErrProbeFailed is the sentinel matched by every *ProbeError.
	ErrProbeFailed = zerr.New("feature probe failed")

	// ErrNoProbeConfigured is returned when the probe is requested but kiln.yaml declares none.
	ErrNoProbeConfigured = zerr.New("no probe configured")

	// ErrBuildExecutionFailed is returned when at least one target failed to build.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrTargetBuildFailed is returned when a single target fails to build.
	ErrTargetBuildFailed = zerr.New("target build failed")

	// ErrOutOfDate is returned by the check command when at least one target needs work.
	ErrOutOfDate = zerr.New("targets are out of date")

	// ErrOutputDirCreateFailed is returned when a per-target output directory cannot be created.
	ErrOutputDirCreateFailed = zerr.New("failed to create output directory")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when the build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when the build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when the build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when the build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrStoreRemoveFailed is returned when the build info store cannot be removed.
	ErrStoreRemoveFailed = zerr.New("failed to remove build info store")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no kiln.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find " + ConfigFileName)

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileReadFailed is returned when a file cannot be read.
	ErrFileReadFailed = zerr.New("failed to read file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrPathStatFailed is returned when stating a path fails.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrFailedToCleanOutput is returned when cleaning an output file fails.
	ErrFailedToCleanOutput = zerr.New("failed to clean output file")

	// ErrOutputHashComputationFailed is returned when output hash computation fails.
	ErrOutputHashComputationFailed = zerr.New("failed to compute output hash")

	// ErrBuildInfoUpdateFailed is returned when updating the build info store fails.
	ErrBuildInfoUpdateFailed = zerr.New("failed to update build info store")

	// ErrToolStartFailed is returned when the compiler or linker cannot be started.
	ErrToolStartFailed = zerr.New("failed to start tool")
)

// Tag attaches metadata to a sentinel error while keeping it matchable with errors.Is.
func Tag(sentinel error, key string, value any) error {
	return zerr.With(zerr.Wrap(sentinel, ""), key, value)
}

// CompileError reports that the compiler rejected one source of a target.
type CompileError struct {
	Target     string
	Source     string
	ToolOutput string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: target %s, source %s%s", ErrCompileFailed.Error(), e.Target, e.Source, toolOutputSuffix(e.ToolOutput))
}

// Unwrap returns the underlying tool error.
func (e *CompileError) Unwrap() error { return e.Err }

// Is matches ErrCompileFailed.
func (e *CompileError) Is(target error) bool { return target == ErrCompileFailed }

// LinkError reports that the linker could not produce a target's artifact.
type LinkError struct {
	Target     string
	Output     string
	Missing    []string
	ToolOutput string
	Err        error
}

func (e *LinkError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: target %s, missing objects: %s", ErrLinkFailed.Error(), e.Target, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: target %s, output %s%s", ErrLinkFailed.Error(), e.Target, e.Output, toolOutputSuffix(e.ToolOutput))
}

// Unwrap returns the underlying tool error.
func (e *LinkError) Unwrap() error { return e.Err }

// Is matches ErrLinkFailed.
func (e *LinkError) Is(target error) bool { return target == ErrLinkFailed }

// ProbeError reports that the feature probe target could not be built.
type ProbeError struct {
	Feature string
	Err     error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrProbeFailed.Error(), e.Feature)
	}
	return fmt.Sprintf("%s: %s: %v", ErrProbeFailed.Error(), e.Feature, e.Err)
}

// Unwrap returns the build failure of the probe target.
func (e *ProbeError) Unwrap() error { return e.Err }

// Is matches ErrProbeFailed.
func (e *ProbeError) Is(target error) bool { return target == ErrProbeFailed }

func toolOutputSuffix(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	return "\n" + out
}
