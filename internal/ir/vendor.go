package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CopySpec describes one vendoring job: a set of globs expanded against a
// package's install directory, copied into the flat module namespace.
type CopySpec struct {
	// Name is the installed package name; it doubles as the default
	// directory name and, when Src is empty, implies the single glob
	// "<name>.js".
	Name string `yaml:"name"`

	// Dir overrides the package directory under the install root.
	Dir string `yaml:"dir"`

	// CWD is an optional list of path segments descended into below the
	// package directory before globs are expanded. A scalar is accepted
	// as a single segment.
	CWD SegmentList `yaml:"cwd"`

	// Src is the list of glob patterns selecting files to copy.
	Src []string `yaml:"src"`

	// Standalone places copied files directly under the module namespace
	// root instead of a nested node_modules/<dir> path.
	Standalone bool `yaml:"standalone"`
}

// PackageDir is the directory under the install root files are copied from.
func (c *CopySpec) PackageDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return c.Name
}

// Globs is the effective pattern list, defaulting to "<name>.js".
func (c *CopySpec) Globs() []string {
	if len(c.Src) > 0 {
		return c.Src
	}
	return []string{c.Name + ".js"}
}

// SegmentList unmarshals from either a YAML scalar or a sequence.
type SegmentList []string

func (s *SegmentList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var one string
		if err := node.Decode(&one); err != nil {
			return err
		}
		*s = SegmentList{one}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = SegmentList(many)
		return nil
	default:
		return fmt.Errorf("cwd must be a string or a list of strings")
	}
}

// VendorManifest is the ordered list of vendoring copy specs.
type VendorManifest struct {
	Packages []CopySpec `yaml:"packages"`
}

// Validate rejects unnamed entries; duplicate destinations are allowed only
// when the caller intends the copies to merge.
func (m *VendorManifest) Validate() error {
	for i, c := range m.Packages {
		if c.Name == "" {
			return fmt.Errorf("vendoring manifest entry %d is missing a name", i)
		}
	}
	return nil
}
