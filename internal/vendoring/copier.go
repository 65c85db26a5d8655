// Package vendoring thins and flattens installed third-party dependency
// trees into the predictable module layout the application's loader
// resolves against.
package vendoring

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
)

// Copier executes a vendoring manifest against an install directory.
type Copier struct {
	// InstallDir is where the raw dependency installer left packages,
	// typically node_modules at the project root.
	InstallDir string

	// ModuleDir is the flat module namespace copies land in.
	ModuleDir string
}

// Run expands and copies every spec concurrently and returns the total
// number of files copied. Specs are independent, but their results are
// jointly awaited and the first failure aborts the join, so one missing
// source directory fails unrelated specs with it.
func (c *Copier) Run(manifest *ir.VendorManifest) (int, error) {
	log := logging.WithStage("install-vendored-dependencies")

	var copied atomic.Int64
	var g errgroup.Group
	for _, spec := range manifest.Packages {
		spec := spec
		g.Go(func() error {
			n, err := c.copySpec(spec)
			if err != nil {
				return fmt.Errorf("vendoring %s: %w", spec.Name, err)
			}
			copied.Add(int64(n))
			log.Debug("vendored package", "package", spec.Name, "files", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(copied.Load()), err
	}
	return int(copied.Load()), nil
}

// copySpec resolves one spec's file list up front, then copies each file
// preserving its path relative to the spec's source root.
func (c *Copier) copySpec(spec ir.CopySpec) (int, error) {
	root := filepath.Join(c.InstallDir, spec.PackageDir())
	for _, seg := range spec.CWD {
		root = filepath.Join(root, seg)
	}
	if !fsutil.DirExists(root) {
		return 0, fmt.Errorf("source directory %s does not exist", root)
	}

	var files []string
	for _, pattern := range spec.Globs() {
		matches, err := fsutil.Glob(root, pattern)
		if err != nil {
			return 0, err
		}
		files = append(files, matches...)
	}

	dest := c.ModuleDir
	if !spec.Standalone {
		dest = filepath.Join(c.ModuleDir, "node_modules", spec.PackageDir())
	}

	for _, rel := range files {
		if err := fsutil.CopyFile(filepath.Join(root, rel), filepath.Join(dest, rel)); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}
