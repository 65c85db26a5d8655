// Package ir defines the value types threaded through the build pipeline:
// the build state itself, plugin and vendoring descriptors, and the git
// provenance record embedded into build artifacts.
package ir

import (
	"path/filepath"
	"time"
)

// BuildConfig is the per-build-type configuration, produced by merging the
// shared defaults file with the named build type's file.
type BuildConfig struct {
	Target  string `yaml:"target" json:"target"`
	Release bool   `yaml:"release" json:"release"`
	Dist    bool   `yaml:"dist" json:"dist"`
	VFS     bool   `yaml:"vfs" json:"vfs"`
}

// StageTiming records how long a single stage ran.
type StageTiming struct {
	Stage   string        `json:"stage"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

// Stats accumulates per-stage timings and file counts across a run.
type Stats struct {
	Timings     []StageTiming `json:"timings"`
	FilesCopied int           `json:"filesCopied"`
	PluginCount int           `json:"pluginCount"`
}

// State is the single value threaded between pipeline stages. Each stage
// consumes the prior stage's state and returns the state it wants kept;
// no stage may retain a reference after handing control to the next.
//
// Git, BuildInfo and MergedConfig start nil and are set by their producing
// stages; once set they are only ever replaced, never cleared.
type State struct {
	// Environment is the project root everything else is resolved against.
	Environment string `json:"environment"`

	Config BuildConfig `json:"buildConfig"`

	// Steps is the ordered log of executed stage names.
	Steps []string `json:"steps"`

	Stats Stats `json:"stats"`

	Git          *GitInfo       `json:"git,omitempty"`
	BuildInfo    *BuildInfo     `json:"buildInfo,omitempty"`
	MergedConfig map[string]any `json:"mergedConfig,omitempty"`
}

// NewState returns the initial state for a run rooted at environment.
func NewState(environment string, cfg BuildConfig) *State {
	return &State{
		Environment: environment,
		Config:      cfg,
	}
}

// Canonical layout: every path below the environment root is fixed by
// convention so that stages and the deploy tooling agree without wiring.

// BuildDir is the root of the assembled build tree.
func (s *State) BuildDir() string {
	return filepath.Join(s.Environment, "build")
}

// ModulesDir is the module namespace the app's loader resolves against.
func (s *State) ModulesDir() string {
	return filepath.Join(s.BuildDir(), "modules")
}

// PluginsDir is where installed plugins land.
func (s *State) PluginsDir() string {
	return filepath.Join(s.ModulesDir(), "plugins")
}

// DistDir is the root of the minified distribution tree.
func (s *State) DistDir() string {
	return filepath.Join(s.Environment, "dist")
}

// ScratchDir holds downloads and diagnostic snapshots; removed by cleanup.
func (s *State) ScratchDir() string {
	return filepath.Join(s.Environment, "build", "scratch")
}

// ConfigDir is where the declarative build inputs live.
func (s *State) ConfigDir() string {
	return filepath.Join(s.Environment, "config")
}

// IntegrationTestDir is the central tree plugin test suites are moved into.
func (s *State) IntegrationTestDir() string {
	return filepath.Join(s.Environment, "test", "integration", "plugins")
}

// RuntimeConfigPath is the generated config.json consumed by the app at load.
func (s *State) RuntimeConfigPath() string {
	return filepath.Join(s.ModulesDir(), "config", "config.json")
}

// RecordStep appends a completed stage to the step log.
func (s *State) RecordStep(name string, started time.Time, elapsed time.Duration) {
	s.Steps = append(s.Steps, name)
	s.Stats.Timings = append(s.Stats.Timings, StageTiming{
		Stage:   name,
		Started: started,
		Elapsed: elapsed,
	})
}
