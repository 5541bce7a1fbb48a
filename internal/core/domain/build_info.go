package domain

import "time"

// BuildInfo is the record kept for every file the builder produced.
// Output and Deps are relative to the project root. Deps holds the headers a compile read
// besides its source.
type BuildInfo struct {
	Output      string    `json:"output,omitzero"`
	Target      string    `json:"target,omitzero"`
	CommandHash string    `json:"command_hash,omitzero"`
	OutputHash  string    `json:"output_hash,omitzero"`
	Deps        []string  `json:"deps,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitzero"`
}
