package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
	"github.com/dauglyon/kbase-ui/internal/plugin"
	"github.com/dauglyon/kbase-ui/internal/vendoring"
)

// npmInstallTimeout bounds the dependency installer; nothing else in the
// pipeline carries an explicit timeout.
const npmInstallTimeout = 300 * time.Second

// setup reorganizes the raw source tree into the build tree: src/ is
// mirrored under build/, and the scratch and plugin namespaces are
// created. A previous build tree is removed first.
func (p *Pipeline) setup(ctx context.Context, state *ir.State) (*ir.State, error) {
	log := logging.WithStage("setup")

	if err := os.RemoveAll(state.BuildDir()); err != nil {
		return nil, fmt.Errorf("failed to remove previous build tree: %w", err)
	}

	srcDir := filepath.Join(state.Environment, "src")
	if !fsutil.DirExists(srcDir) {
		return nil, fmt.Errorf("source tree %s does not exist", srcDir)
	}
	copied, err := fsutil.CopyDir(srcDir, state.BuildDir())
	if err != nil {
		return nil, err
	}
	state.Stats.FilesCopied += copied
	log.Info("source tree staged", "files", copied)

	for _, dir := range []string{state.ModulesDir(), state.PluginsDir(), state.ScratchDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return state, nil
}

// installNPMDependencies runs the raw dependency installer under its
// 300-second bound. The installer's non-fatal diagnostics on stderr are
// treated as success; only a non-zero exit fails the stage.
func (p *Pipeline) installNPMDependencies(ctx context.Context, state *ir.State) (*ir.State, error) {
	log := logging.WithStage("install-npm-dependencies")

	installCtx, cancel := context.WithTimeout(ctx, npmInstallTimeout)
	defer cancel()

	if _, err := p.Runner.Output(installCtx, state.Environment, "npm", "install", "--no-save", "--no-audit", "--no-fund"); err != nil {
		return nil, fmt.Errorf("dependency install failed: %w", err)
	}
	log.Info("dependencies installed")
	return state, nil
}

// installVendoredDependencies thins and flattens the installed dependency
// trees into the module namespace according to the vendoring manifest.
func (p *Pipeline) installVendoredDependencies(ctx context.Context, state *ir.State) (*ir.State, error) {
	manifest, err := p.Loader.LoadVendorManifest()
	if err != nil {
		return nil, err
	}

	copier := &vendoring.Copier{
		InstallDir: filepath.Join(state.Environment, "node_modules"),
		ModuleDir:  state.ModulesDir(),
	}
	copied, err := copier.Run(manifest)
	if err != nil {
		return nil, err
	}
	state.Stats.FilesCopied += copied
	return state, nil
}

// installPlugins materializes every plugin manifest entry into the plugin
// namespace and relocates each plugin's test suite into the central
// integration-test tree.
func (p *Pipeline) installPlugins(ctx context.Context, state *ir.State) (*ir.State, error) {
	manifest, err := p.Loader.LoadPluginManifest()
	if err != nil {
		return nil, err
	}

	sourcer := &plugin.Sourcer{
		Runner:      p.Runner,
		InternalDir: filepath.Join(state.Environment, "plugins"),
		RepoRoot:    filepath.Dir(state.Environment),
		DownloadDir: filepath.Join(state.ScratchDir(), "downloads"),
		DestDir:     state.PluginsDir(),
	}
	if err := os.MkdirAll(sourcer.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if err := sourcer.InstallAll(ctx, manifest); err != nil {
		return nil, err
	}

	if _, err := plugin.RelocateTests(state.PluginsDir(), state.IntegrationTestDir()); err != nil {
		return nil, err
	}

	state.Stats.PluginCount = len(manifest.Plugins)
	return state, nil
}
