// Package pipeline runs the fixed, statically ordered list of build
// stages over the build state: fail-fast, no retries, no rollback of
// partial filesystem effects.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dauglyon/kbase-ui/internal/config"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
	"github.com/dauglyon/kbase-ui/internal/process"
)

// UsageError reports a bad or missing build-type argument. It is raised
// before any stage runs.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// StageFunc is one named asynchronous transformation. A stage must
// incorporate every mutation it intends to keep into its returned state.
type StageFunc func(ctx context.Context, state *ir.State) (*ir.State, error)

// Stage pairs a stage name with its function and an optional skip
// predicate evaluated against the build config.
type Stage struct {
	Name string
	Skip func(cfg ir.BuildConfig) bool
	Fn   StageFunc
}

// StageEvent reports stage progress to the run callback.
type StageEvent struct {
	Stage    string
	Status   string // "started", "skipped", "completed", "failed"
	Duration time.Duration
	Err      error
}

// Callback receives a StageEvent per stage transition, if set.
type Callback func(event StageEvent)

// Pipeline owns the collaborators every stage draws on.
type Pipeline struct {
	// Environment is the project root the build runs against.
	Environment string

	Loader   *config.Loader
	Runner   process.Runner
	Callback Callback

	snapshots *SnapshotManager
}

// New constructs a Pipeline rooted at environment.
func New(environment string) *Pipeline {
	return &Pipeline{
		Environment: environment,
		Loader:      config.NewLoader(environment),
		Runner:      process.ExecRunner{},
	}
}

// stages is the fixed execution order. Optional stages carry a Skip
// predicate; everything else always runs.
func (p *Pipeline) stages() []Stage {
	distSkipped := func(cfg ir.BuildConfig) bool { return !cfg.Dist }
	vfsSkipped := func(cfg ir.BuildConfig) bool { return !cfg.VFS }
	return []Stage{
		{Name: "setup", Fn: p.setup},
		{Name: "install-npm-dependencies", Fn: p.installNPMDependencies},
		{Name: "install-vendored-dependencies", Fn: p.installVendoredDependencies},
		{Name: "install-plugins", Fn: p.installPlugins},
		{Name: "merge-configs", Fn: p.mergeConfigs},
		{Name: "create-build-info", Fn: p.createBuildInfo},
		{Name: "verify-version", Fn: p.verifyVersion},
		{Name: "write-config", Fn: p.writeConfig},
		{Name: "make-deploy-configs", Fn: p.makeDeployConfigs},
		{Name: "cache-bust", Fn: p.cacheBust},
		{Name: "make-dist", Skip: distSkipped, Fn: p.makeDist},
		{Name: "minify", Skip: distSkipped, Fn: p.minify},
		{Name: "make-module-vfs", Skip: vfsSkipped, Fn: p.makeModuleVFS},
		{Name: "cleanup", Fn: p.cleanup},
	}
}

// Run builds the initial state from the named build type and executes the
// stage list. The first failing stage aborts the run; no stage is retried
// and no filesystem effect is rolled back.
func (p *Pipeline) Run(ctx context.Context, buildType string) (*ir.State, error) {
	if buildType == "" {
		return nil, &UsageError{Msg: "a build type argument is required"}
	}
	if _, err := os.Stat(p.Loader.BuildConfigPath(buildType)); err != nil {
		return nil, &UsageError{
			Msg: fmt.Sprintf("unknown build type %q: no config at %s", buildType, p.Loader.BuildConfigPath(buildType)),
		}
	}

	cfg, err := p.Loader.LoadBuildConfig(buildType)
	if err != nil {
		return nil, err
	}
	state := ir.NewState(p.Environment, cfg)
	p.snapshots = NewSnapshotManager(state.ScratchDir())

	logging.Info("starting build", "target", cfg.Target, "release", cfg.Release, "dist", cfg.Dist, "vfs", cfg.VFS)

	for i, stage := range p.stages() {
		if stage.Skip != nil && stage.Skip(state.Config) {
			logging.Info("skipping stage", "stage", stage.Name)
			p.emit(StageEvent{Stage: stage.Name, Status: "skipped"})
			continue
		}

		// The snapshot is diagnostics only; no later stage reads it.
		if err := p.snapshots.Record(i, stage.Name, state); err != nil {
			return nil, err
		}

		started := time.Now()
		p.emit(StageEvent{Stage: stage.Name, Status: "started"})
		logging.Info("running stage", "stage", stage.Name)

		next, err := stage.Fn(ctx, state)
		elapsed := time.Since(started)
		if err != nil {
			p.emit(StageEvent{Stage: stage.Name, Status: "failed", Duration: elapsed, Err: err})
			return nil, fmt.Errorf("stage %s failed: %w", stage.Name, err)
		}

		next.RecordStep(stage.Name, started, elapsed)
		p.emit(StageEvent{Stage: stage.Name, Status: "completed", Duration: elapsed})
		state = next
	}

	logging.Info("build complete", "target", state.Config.Target, "steps", len(state.Steps))
	return state, nil
}

func (p *Pipeline) emit(event StageEvent) {
	if p.Callback != nil {
		p.Callback(event)
	}
}
