// Package linear provides a synchronous, line-buffered progress renderer.
package linear

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

// Renderer implements ports.Renderer. Step lifecycle lines go to stderr and tool
// output goes to stdout, prefixed with the step name. Nested steps are indented.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu    sync.Mutex
	steps map[string]*stepState
}

type stepState struct {
	name      string
	depth     int
	startTime time.Time
	pending   bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers default to os.Stdout and os.Stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: output.NewWithProfile(stderr, output.ColorProfileANSI),
		steps:  make(map[string]*stepState),
	}
}

// OnStepStart prints the step name.
func (r *Renderer) OnStepStart(spanID, parentID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step := &stepState{name: name, startTime: startTime}
	if parent, ok := r.steps[parentID]; ok {
		step.depth = parent.depth + 1
	}
	r.steps[spanID] = step

	dot := r.output.String(style.Dot).Foreground(r.output.Color(string(style.Ember))).String()
	_, _ = fmt.Fprintf(r.stderr, "%s%s %s\n", indent(step.depth), dot, name)
}

// OnStepLog prints complete lines of tool output and keeps a trailing partial line.
func (r *Renderer) OnStepLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, ok := r.steps[spanID]
	if !ok {
		return
	}

	step.pending.Write(data)
	for {
		idx := bytes.IndexByte(step.pending.Bytes(), '\n')
		if idx < 0 {
			return
		}
		line := step.pending.Next(idx + 1)
		r.printLineLocked(step, line)
	}
}

// OnStepComplete flushes pending output and prints the result.
func (r *Renderer) OnStepComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, ok := r.steps[spanID]
	if !ok {
		return
	}
	delete(r.steps, spanID)

	if step.pending.Len() > 0 {
		r.printLineLocked(step, step.pending.Bytes())
	}

	duration := endTime.Sub(step.startTime).Round(time.Millisecond)
	if err != nil {
		cross := r.output.String(style.Cross).Foreground(r.output.Color(string(style.Red))).String()
		_, _ = fmt.Fprintf(r.stderr, "%s%s %s failed after %v: %v\n", indent(step.depth), cross, step.name, duration, err)
		return
	}

	check := r.output.String(style.Check).Foreground(r.output.Color(string(style.Green))).String()
	_, _ = fmt.Fprintf(r.stderr, "%s%s %s (%v)\n", indent(step.depth), check, step.name, duration)
}

// Flush prints the partial output of steps that never completed.
func (r *Renderer) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, step := range r.steps {
		if step.pending.Len() > 0 {
			r.printLineLocked(step, step.pending.Bytes())
			step.pending.Reset()
		}
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(step *stepState, line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "%s[%s] %s\n", indent(step.depth), step.name, line)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
