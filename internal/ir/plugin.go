package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PluginSource is the tagged origin of an external plugin. Exactly one of
// the concrete types below is carried by a PluginDescriptor.
type PluginSource interface {
	sourceKind() string
}

// InternalSource marks a plugin shipped inside this repository's
// internal-plugins directory.
type InternalSource struct{}

// DirectorySource points at a sibling plugin repository on disk.
type DirectorySource struct {
	Root string `yaml:"root"`
}

// GithubSource points at a remote plugin repository to be cloned.
type GithubSource struct {
	Account string `yaml:"account"`
	Repo    string `yaml:"repo"`
	Branch  string `yaml:"branch"`
	URL     string `yaml:"url"`
}

func (InternalSource) sourceKind() string  { return "internal" }
func (DirectorySource) sourceKind() string { return "directory" }
func (GithubSource) sourceKind() string    { return "github" }

// PluginDescriptor is one entry of the plugin manifest. A bare string entry
// is shorthand for an internal plugin of that name.
type PluginDescriptor struct {
	Name       string
	GlobalName string
	Version    string
	CWD        string
	Source     PluginSource
}

// pluginYAML is the mapping form of a manifest entry.
type pluginYAML struct {
	Name       string `yaml:"name"`
	GlobalName string `yaml:"globalName"`
	Version    string `yaml:"version"`
	CWD        string `yaml:"cwd"`
	Source     *struct {
		Directory *DirectorySource `yaml:"directory"`
		Github    *GithubSource    `yaml:"github"`
	} `yaml:"source"`
}

// UnmarshalYAML accepts either a scalar plugin name or a full descriptor
// mapping with a tagged source.
func (p *PluginDescriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		*p = PluginDescriptor{Name: name, Source: InternalSource{}}
		return nil
	}

	var raw pluginYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("plugin manifest entry is missing a name")
	}
	p.Name = raw.Name
	p.GlobalName = raw.GlobalName
	p.Version = raw.Version
	p.CWD = raw.CWD

	switch {
	case raw.Source == nil:
		p.Source = InternalSource{}
	case raw.Source.Directory != nil && raw.Source.Github != nil:
		return fmt.Errorf("plugin %s declares both a directory and a github source", raw.Name)
	case raw.Source.Directory != nil:
		p.Source = *raw.Source.Directory
	case raw.Source.Github != nil:
		p.Source = *raw.Source.Github
	default:
		p.Source = InternalSource{}
	}
	return nil
}

// PluginManifest is the ordered list of plugins a build installs.
type PluginManifest struct {
	Plugins []PluginDescriptor `yaml:"plugins"`
}

// Validate enforces manifest-level invariants, currently name uniqueness.
func (m *PluginManifest) Validate() error {
	seen := make(map[string]bool, len(m.Plugins))
	for _, p := range m.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugin manifest contains an unnamed entry")
		}
		if seen[p.Name] {
			return fmt.Errorf("plugin %s appears more than once in the manifest", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
