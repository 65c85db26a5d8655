// Package config loads and merges the declarative YAML inputs of a build:
// the shared defaults and per-build-type files, the plugin and vendoring
// manifests, the UI and release configs, and the per-environment deploy
// files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dauglyon/kbase-ui/internal/ir"
)

// ConfigError reports a malformed or incomplete declarative input. It is
// fatal to the pipeline.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ReleaseConfig declares the version a release build must carry.
type ReleaseConfig struct {
	Version string `yaml:"version"`
}

// Loader resolves and parses the config files of one project directory.
type Loader struct {
	projectDir string
}

// NewLoader returns a Loader rooted at projectDir.
func NewLoader(projectDir string) *Loader {
	return &Loader{projectDir: projectDir}
}

// BuildConfigPath is the config file for the named build type.
func (l *Loader) BuildConfigPath(target string) string {
	return filepath.Join(l.projectDir, "config", "build", target+".yml")
}

// LoadBuildConfig merges the shared defaults file with the named build
// type's file; fields present in the target file win.
func (l *Loader) LoadBuildConfig(target string) (ir.BuildConfig, error) {
	var cfg ir.BuildConfig

	defaultsPath := filepath.Join(l.projectDir, "config", "build", "defaults.yml")
	if err := l.decodeInto(defaultsPath, &cfg); err != nil {
		return cfg, err
	}
	if err := l.decodeInto(l.BuildConfigPath(target), &cfg); err != nil {
		return cfg, err
	}

	cfg.Target = target
	return cfg, nil
}

// LoadPluginManifest reads and validates config/plugins.yml.
func (l *Loader) LoadPluginManifest() (*ir.PluginManifest, error) {
	path := filepath.Join(l.projectDir, "config", "plugins.yml")
	var m ir.PluginManifest
	if err := l.decodeInto(path, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return &m, nil
}

// LoadVendorManifest reads and validates config/dependencies.yml.
func (l *Loader) LoadVendorManifest() (*ir.VendorManifest, error) {
	path := filepath.Join(l.projectDir, "config", "dependencies.yml")
	var m ir.VendorManifest
	if err := l.decodeInto(path, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return &m, nil
}

// LoadUIConfig reads config/ui.yml as a free-form map.
func (l *Loader) LoadUIConfig() (map[string]any, error) {
	var m map[string]any
	if err := l.decodeInto(filepath.Join(l.projectDir, "config", "ui.yml"), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadReleaseConfig reads config/release.yml.
func (l *Loader) LoadReleaseConfig() (*ReleaseConfig, error) {
	var rc ReleaseConfig
	if err := l.decodeInto(filepath.Join(l.projectDir, "config", "release.yml"), &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// DeployConfigs lists the per-environment deploy YAML files, sorted by
// environment name.
func (l *Loader) DeployConfigs() ([]string, error) {
	dir := filepath.Join(l.projectDir, "config", "deploy")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list deploy configs: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *Loader) decodeInto(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// Merge deep-merges overlay onto base, returning a new map. Nested maps
// merge recursively; any other overlay value replaces the base value.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if bm, ok := out[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				out[k] = Merge(bm, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}
