package domain

// ActionKind distinguishes the two kinds of build steps.
type ActionKind string

const (
	// ActionCompile turns one source into one object.
	ActionCompile ActionKind = "compile"
	// ActionLink turns a target's objects into its artifact.
	ActionLink ActionKind = "link"
)

// Action is one fully resolved invocation of the external toolchain.
type Action struct {
	Kind    ActionKind
	Target  string
	Source  string
	Program string
	Inputs  []string
	Output  string
	Flags   []string
	// Depfile, when set, is where the compiler writes the headers the source includes.
	Depfile string
}

// StaleReason explains why an action has to run.
type StaleReason string

const (
	// ReasonUpToDate means the action can be skipped.
	ReasonUpToDate StaleReason = ""
	// ReasonForced means the caller asked for an unconditional rebuild.
	ReasonForced StaleReason = "forced"
	// ReasonMissingOutput means the output file does not exist.
	ReasonMissingOutput StaleReason = "missing output"
	// ReasonNoRecord means kiln has never recorded producing the output.
	ReasonNoRecord StaleReason = "no build record"
	// ReasonCommandChanged means program, inputs or flags differ from the last run.
	ReasonCommandChanged StaleReason = "command changed"
	// ReasonInputMissing means an input file does not exist.
	ReasonInputMissing StaleReason = "input missing"
	// ReasonInputNewer means an input was modified after the output.
	ReasonInputNewer StaleReason = "input newer"
	// ReasonHeaderMissing means a header the last compile read no longer exists.
	ReasonHeaderMissing StaleReason = "header missing"
	// ReasonHeaderNewer means a header the last compile read was modified after the output.
	ReasonHeaderNewer StaleReason = "header newer"
	// ReasonOutputModified means the output no longer matches what was produced.
	ReasonOutputModified StaleReason = "output modified"
	// ReasonInputRebuilt means an object the link consumes is about to be rebuilt.
	ReasonInputRebuilt StaleReason = "input rebuilt"
)

// PlannedStep pairs an action with the reason it would run.
type PlannedStep struct {
	Action Action
	Reason StaleReason
}

// TargetStatus is the dry-run view of one target.
type TargetStatus struct {
	Target string
	Steps  []PlannedStep
}

// Stale reports whether any step would run.
func (s TargetStatus) Stale() bool {
	return len(s.Steps) > 0
}

// CheckReport is the dry-run view of a selection of targets.
type CheckReport struct {
	Layout  Layout
	Probe   ProbeOutcome
	Targets []TargetStatus
}

// OutOfDate reports whether any target would be rebuilt.
func (r CheckReport) OutOfDate() bool {
	for _, t := range r.Targets {
		if t.Stale() {
			return true
		}
	}
	return false
}

// TargetResult summarizes what a build of one target did.
type TargetResult struct {
	Target   string
	Artifact string
	Compiled []string
	Linked   bool
}

// UpToDate reports whether the build did no work.
func (r TargetResult) UpToDate() bool {
	return len(r.Compiled) == 0 && !r.Linked
}
