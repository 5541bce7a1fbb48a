// Package style provides the colors and icons shared by every kiln renderer.
package style

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	Ember  = lipgloss.Color("#E8590C")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)
