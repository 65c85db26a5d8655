// Package watch rebuilds on source changes during development: it watches
// the source and config trees and reruns the pipeline after a quiet
// period, so a burst of editor writes triggers a single rebuild.
package watch

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dauglyon/kbase-ui/internal/logging"
)

// debounce is the quiet period after the last event before a rebuild.
const debounce = 500 * time.Millisecond

// Watcher reruns a build function when watched trees change.
type Watcher struct {
	projectDir string
	rebuild    func(ctx context.Context) error
}

// New returns a Watcher over projectDir's src and config trees.
func New(projectDir string, rebuild func(ctx context.Context) error) *Watcher {
	return &Watcher{projectDir: projectDir, rebuild: rebuild}
}

// Run performs an initial build, then blocks rebuilding on changes until
// the context is cancelled. A failed rebuild is logged, not fatal: the
// next change gets a fresh attempt.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.rebuild(ctx); err != nil {
		logging.Error("initial build failed", "error", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, root := range []string{
		filepath.Join(w.projectDir, "src"),
		filepath.Join(w.projectDir, "config"),
	} {
		if err := addTree(fw, root); err != nil {
			return err
		}
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need watching too; errors here just
				// mean the entry vanished again.
				_ = addTree(fw, event.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "error", err)

		case <-fire:
			logging.Info("change detected, rebuilding")
			if err := w.rebuild(ctx); err != nil {
				logging.Error("rebuild failed", "error", err)
			}
		}
	}
}

// addTree registers path and every directory below it.
func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
