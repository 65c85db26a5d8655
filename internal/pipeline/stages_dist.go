package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	minifycss "github.com/tdewolff/minify/v2/css"
	minifyjs "github.com/tdewolff/minify/v2/js"
	minifyjson "github.com/tdewolff/minify/v2/json"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
	"github.com/dauglyon/kbase-ui/internal/vfs"
)

// makeDist mirrors the finished build tree into the distribution tree.
func (p *Pipeline) makeDist(ctx context.Context, state *ir.State) (*ir.State, error) {
	if err := os.RemoveAll(state.DistDir()); err != nil {
		return nil, fmt.Errorf("failed to remove previous dist tree: %w", err)
	}
	copied, err := copyTreeExcluding(state.BuildDir(), state.DistDir(), "scratch")
	if err != nil {
		return nil, err
	}
	logging.WithStage("make-dist").Info("dist tree created", "files", copied)
	return state, nil
}

// minify rewrites every js, css and json file in the dist tree in place.
func (p *Pipeline) minify(ctx context.Context, state *ir.State) (*ir.State, error) {
	log := logging.WithStage("minify")

	m := minify.New()
	m.AddFunc("application/javascript", minifyjs.Minify)
	m.AddFunc("text/css", minifycss.Minify)
	m.AddFunc("application/json", minifyjson.Minify)

	mediatypes := map[string]string{
		".js":   "application/javascript",
		".css":  "text/css",
		".json": "application/json",
	}

	minified := 0
	err := filepath.WalkDir(state.DistDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		mediatype, ok := mediatypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out, err := m.Bytes(mediatype, raw)
		if err != nil {
			return fmt.Errorf("failed to minify %s: %w", path, err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return err
		}
		minified++
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("dist tree minified", "files", minified)
	return state, nil
}

// makeModuleVFS synthesizes the virtual module table over the deployable
// tree and writes the generated script beside it.
func (p *Pipeline) makeModuleVFS(ctx context.Context, state *ir.State) (*ir.State, error) {
	log := logging.WithStage("make-module-vfs")

	root := state.BuildDir()
	if state.Config.Dist {
		root = state.DistDir()
	}
	runtimeConfig, err := filepath.Rel(state.BuildDir(), state.RuntimeConfigPath())
	if err != nil {
		return nil, err
	}

	builder := &vfs.Builder{
		Root:         root,
		ExcludePaths: []string{runtimeConfig},
		ExcludeDirs:  []string{"scratch"},
	}
	table, report, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if err := table.WriteScript(filepath.Join(root, "moduleVfs.js")); err != nil {
		return nil, err
	}

	log.Info("module vfs written", "scripts", len(table.Scripts))
	for _, line := range strings.Split(strings.TrimSpace(report.Summary()), "\n") {
		if line != "" {
			log.Info("vfs " + line)
		}
	}
	return state, nil
}

// cleanup removes the scratch tree: downloads, extractions and state
// snapshots have no place in a deployable artifact.
func (p *Pipeline) cleanup(ctx context.Context, state *ir.State) (*ir.State, error) {
	if err := os.RemoveAll(state.ScratchDir()); err != nil {
		return nil, fmt.Errorf("failed to remove scratch tree: %w", err)
	}
	return state, nil
}

// copyTreeExcluding mirrors src into dest, skipping the named top-level
// entries.
func copyTreeExcluding(src, dest string, exclude ...string) (int, error) {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if top := strings.Split(filepath.ToSlash(rel), "/")[0]; skip[top] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := fsutil.CopyFile(path, target); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	return copied, nil
}
