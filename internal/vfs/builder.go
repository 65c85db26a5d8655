// Package vfs builds the module virtual filesystem: a single generated
// script embedding the build tree's loadable files as an in-memory table
// of path-keyed script thunks and base-name-keyed resources, so the
// deployed app loads without per-file network fetches.
package vfs

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/dauglyon/kbase-ui/internal/logging"
)

// MaxEmbeddedFileSize is the size at which a file stays in the physical
// tree but is excluded from the virtual table.
const MaxEmbeddedFileSize = 200000

// iframeSubtree marks the third-party plugin subtree that loads in an
// iframe and must keep fetching real files.
const iframeSubtree = "iframe_root"

// Resources holds the non-script side of the table, keyed by base name.
type Resources struct {
	JSON map[string]any    `json:"json"`
	Text map[string]string `json:"text"`
	CSS  map[string]string `json:"css"`
}

// VFS is the assembled virtual filesystem.
type VFS struct {
	// Scripts maps a file's tree-relative path to its source, to be
	// emitted wrapped in a zero-argument thunk.
	Scripts   map[string]string
	Resources Resources
}

// Report counts included and skipped files per extension class.
type Report struct {
	Included map[string]int
	Skipped  map[string]int
}

func newReport() *Report {
	return &Report{Included: map[string]int{}, Skipped: map[string]int{}}
}

// Builder assembles a VFS from a finished build tree.
type Builder struct {
	// Root is the build tree walked for embeddable files.
	Root string

	// ExcludePaths are tree-relative files never embedded, such as the
	// generated runtime config.
	ExcludePaths []string

	// ExcludeDirs are tree-relative directories whose contents never
	// participate, such as the scratch tree.
	ExcludeDirs []string
}

// classified is one walked file awaiting embedding.
type classified struct {
	rel  string
	ext  string
	data []byte
}

// Build walks the tree, reads every candidate concurrently, and assembles
// the table. YAML resources are filed before JSON so a JSON base-name
// collision with a prior YAML entry can be detected; that collision is
// fatal while a JSON parse failure only skips the file.
func (b *Builder) Build() (*VFS, *Report, error) {
	log := logging.WithStage("make-module-vfs")
	report := newReport()

	var candidates []*classified
	err := filepath.WalkDir(b.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == iframeSubtree || b.excludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if b.excluded(rel) {
			return nil
		}

		ext := extensionOf(rel)
		if !supportedExtension(ext) {
			report.Skipped[extClass(ext)]++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() >= MaxEmbeddedFileSize {
			log.Debug("file too large for vfs", "path", rel, "size", info.Size())
			report.Skipped[ext]++
			return nil
		}
		candidates = append(candidates, &classified{rel: rel, ext: ext})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk build tree: %w", err)
	}

	// Reads fan out; assembly below stays sequential and ordered.
	var g errgroup.Group
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(b.Root, filepath.FromSlash(c.rel)))
			if err != nil {
				return err
			}
			c.data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("failed to read build tree files: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rel < candidates[j].rel })

	v := &VFS{
		Scripts: map[string]string{},
		Resources: Resources{
			JSON: map[string]any{},
			Text: map[string]string{},
			CSS:  map[string]string{},
		},
	}
	fromYAML := map[string]bool{}

	// YAML before JSON: the collision rule refers to prior YAML entries.
	order := []string{"js", "yaml", "yml", "json", "text", "txt", "css", "csv"}
	for _, wanted := range order {
		for _, c := range candidates {
			if c.ext != wanted {
				continue
			}
			if err := v.embed(c, fromYAML, report, log); err != nil {
				return nil, nil, err
			}
		}
	}
	return v, report, nil
}

func (v *VFS) embed(c *classified, fromYAML map[string]bool, report *Report, log *slog.Logger) error {
	base := baseName(c.rel)
	switch c.ext {
	case "js":
		v.Scripts[c.rel] = string(c.data)
		report.Included[c.ext]++

	case "yaml", "yml":
		var value any
		if err := yaml.Unmarshal(c.data, &value); err != nil {
			return fmt.Errorf("failed to parse yaml resource %s: %w", c.rel, err)
		}
		v.Resources.JSON[base] = value
		fromYAML[base] = true
		report.Included[c.ext]++

	case "json":
		value, err := parseJSON(c.data)
		if err != nil {
			// Recovered locally: the file is skipped, the build goes on.
			log.Warn("skipping unparseable json resource", "path", c.rel, "error", err)
			report.Skipped[c.ext]++
			return nil
		}
		if fromYAML[base] {
			return fmt.Errorf("json resource %s collides with yaml resource %q", c.rel, base)
		}
		v.Resources.JSON[base] = value
		report.Included[c.ext]++

	case "text", "txt":
		v.Resources.Text[base] = string(c.data)
		report.Included[c.ext]++

	case "css":
		content := string(c.data)
		if strings.Contains(content, "@import") || strings.Contains(content, "@font-face") {
			// Such rules resolve relative to the stylesheet's real URL
			// and cannot tolerate relocation into the virtual table.
			report.Skipped[c.ext]++
			return nil
		}
		v.Resources.CSS[base] = content
		report.Included[c.ext]++

	case "csv":
		report.Skipped[c.ext]++
	}
	return nil
}

func (b *Builder) excluded(rel string) bool {
	for _, p := range b.ExcludePaths {
		if rel == filepath.ToSlash(p) {
			return true
		}
	}
	return false
}

func (b *Builder) excludedDir(rel string) bool {
	for _, p := range b.ExcludeDirs {
		if rel == filepath.ToSlash(p) {
			return true
		}
	}
	return false
}

func extensionOf(rel string) string {
	ext := path.Ext(rel)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func baseName(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// supportedExtension reports whether files of this extension participate
// in the table at all. CSV is "supported" only in the sense that it is
// classified and counted; embed always skips it.
func supportedExtension(ext string) bool {
	switch ext {
	case "js", "yaml", "yml", "json", "text", "txt", "css", "csv":
		return true
	}
	return false
}

func extClass(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return ext
}

func parseJSON(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
