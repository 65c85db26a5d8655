// Package plugin materializes every manifest entry into the build tree's
// plugin namespace, sourcing each plugin from its internal, directory, or
// github origin, and relocates plugin test suites into the central
// integration-test tree.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
	"github.com/dauglyon/kbase-ui/internal/process"
)

// defaultDirectorySubpath is where a directory-sourced plugin repository
// keeps its installable payload unless the descriptor says otherwise.
const defaultDirectorySubpath = "dist/plugin"

// SourceUnavailableError reports that no install method could produce a
// source tree for a plugin. Fatal.
type SourceUnavailableError struct {
	Plugin string
	Reason string
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("no viable source for plugin %s: %s", e.Plugin, e.Reason)
}

// Sourcer resolves and installs plugins.
type Sourcer struct {
	Runner process.Runner

	// InternalDir is the fixed local directory internal plugins ship in.
	InternalDir string

	// RepoRoot is the default parent of directory-sourced plugin
	// repositories; a descriptor's explicit root wins.
	RepoRoot string

	// DownloadDir is the scratch area github clones land in.
	DownloadDir string

	// DestDir is the build tree's plugin namespace.
	DestDir string
}

// InstallAll installs every manifest entry concurrently and jointly awaits
// the results. Installation is order-independent: each plugin owns its own
// destination directory.
func (s *Sourcer) InstallAll(ctx context.Context, manifest *ir.PluginManifest) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, desc := range manifest.Plugins {
		desc := desc
		g.Go(func() error {
			return s.Install(ctx, desc)
		})
	}
	return g.Wait()
}

// Install resolves one descriptor's source tree and copies it into
// <dest>/<name>.
func (s *Sourcer) Install(ctx context.Context, desc ir.PluginDescriptor) error {
	log := logging.WithStage("install-plugins")

	source, err := s.resolve(ctx, desc)
	if err != nil {
		return err
	}

	dest := filepath.Join(s.DestDir, desc.Name)
	files, err := fsutil.Glob(source, "**/*")
	if err != nil {
		return fmt.Errorf("failed to list plugin %s source: %w", desc.Name, err)
	}
	for _, rel := range files {
		if err := fsutil.CopyFile(filepath.Join(source, rel), filepath.Join(dest, rel)); err != nil {
			return fmt.Errorf("failed to install plugin %s: %w", desc.Name, err)
		}
	}

	log.Info("installed plugin", "plugin", desc.Name, "files", len(files), "source", source)
	return nil
}

// resolve maps a descriptor's tagged source to a directory on disk,
// fetching remote sources first.
func (s *Sourcer) resolve(ctx context.Context, desc ir.PluginDescriptor) (string, error) {
	switch src := desc.Source.(type) {
	case ir.InternalSource:
		dir := filepath.Join(s.InternalDir, desc.Name)
		if !fsutil.DirExists(dir) {
			return "", &SourceUnavailableError{Plugin: desc.Name, Reason: fmt.Sprintf("internal plugin directory %s does not exist", dir)}
		}
		return dir, nil

	case ir.DirectorySource:
		root := src.Root
		if root == "" {
			root = s.RepoRoot
		}
		subpath := desc.CWD
		if subpath == "" {
			subpath = defaultDirectorySubpath
		}
		dir := filepath.Join(root, desc.Name, subpath)
		if !fsutil.DirExists(dir) {
			return "", &SourceUnavailableError{Plugin: desc.Name, Reason: fmt.Sprintf("directory source %s does not exist", dir)}
		}
		return dir, nil

	case ir.GithubSource:
		return s.fetchGithub(ctx, desc, src)

	default:
		return "", &SourceUnavailableError{Plugin: desc.Name, Reason: "descriptor carries no source"}
	}
}
