package vfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GenerateScript renders the VFS as a single self-executing script that
// assigns the global path-to-thunk table and the nested resource table.
func (v *VFS) GenerateScript() (string, error) {
	var b strings.Builder
	b.WriteString("// Generated module virtual filesystem. Do not edit.\n")
	b.WriteString("(function (global) {\n")
	b.WriteString("    \"use strict\";\n")
	b.WriteString("    var scripts = {};\n")

	paths := make([]string, 0, len(v.Scripts))
	for p := range v.Scripts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		key, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		// Each script is embedded verbatim inside a zero-argument thunk
		// so it only evaluates when the loader asks for its path.
		fmt.Fprintf(&b, "    scripts[%s] = function () {\n", key)
		b.WriteString(v.Scripts[p])
		if !strings.HasSuffix(v.Scripts[p], "\n") {
			b.WriteString("\n")
		}
		b.WriteString("    };\n")
	}

	resources, err := json.MarshalIndent(v.Resources, "    ", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize vfs resources: %w", err)
	}
	fmt.Fprintf(&b, "    global.moduleVfs = {\n        scripts: scripts,\n        resources: %s\n    };\n", resources)
	b.WriteString("}(typeof window !== \"undefined\" ? window : this));\n")
	return b.String(), nil
}

// WriteScript generates the VFS script and writes it to path.
func (v *VFS) WriteScript(path string) error {
	script, err := v.GenerateScript()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Summary renders the per-extension included/skipped counts.
func (r *Report) Summary() string {
	exts := map[string]bool{}
	for e := range r.Included {
		exts[e] = true
	}
	for e := range r.Skipped {
		exts[e] = true
	}
	sorted := make([]string, 0, len(exts))
	for e := range exts {
		sorted = append(sorted, e)
	}
	sort.Strings(sorted)

	var b strings.Builder
	for _, e := range sorted {
		fmt.Fprintf(&b, "%s: %d included, %d skipped\n", e, r.Included[e], r.Skipped[e])
	}
	return b.String()
}
