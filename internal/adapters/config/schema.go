package config

// Kilnfile represents the structure of the kiln.yaml configuration file.
type Kilnfile struct {
	Version   string               `yaml:"version"`
	Root      string               `yaml:"root"`
	BuildDir  string               `yaml:"buildDir"`
	SourceDir string               `yaml:"sourceDir"`
	SourceExt string               `yaml:"sourceExt"`
	ObjectExt string               `yaml:"objectExt"`
	Compiler  string               `yaml:"compiler"`
	Linker    string               `yaml:"linker"`
	Depfiles  *bool                `yaml:"depfiles"`
	Targets   map[string]TargetDTO `yaml:"targets"`
	Probe     *ProbeDTO            `yaml:"probe"`
	Shortcuts map[string]string    `yaml:"shortcuts"`
}

// TargetDTO represents a target definition in the configuration.
type TargetDTO struct {
	Output  string   `yaml:"output"`
	Sources []string `yaml:"sources"`
	CFlags  []string `yaml:"cflags"`
	LFlags  []string `yaml:"lflags"`
}

// ProbeTargetDTO is the throwaway target built by the feature probe.
type ProbeTargetDTO struct {
	Name      string `yaml:"name"`
	TargetDTO `yaml:",inline"`
}

// ProbeDTO represents the optional feature probe.
type ProbeDTO struct {
	Feature string         `yaml:"feature"`
	Target  ProbeTargetDTO `yaml:"target"`
	CFlags  []string       `yaml:"cflags"`
	LFlags  []string       `yaml:"lflags"`
	Gates   []string       `yaml:"gates"`
}
