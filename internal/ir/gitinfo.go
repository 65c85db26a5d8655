package ir

import "regexp"

// releaseTagPattern is the strict form a release tag must take for a
// version to be derived from it.
var releaseTagPattern = regexp.MustCompile(`^v(\d+\.\d+\.\d+)$`)

// GitInfo is the provenance record extracted from the repository HEAD.
type GitInfo struct {
	CommitHash            string `json:"commitHash"`
	CommitAbbreviatedHash string `json:"commitAbbreviatedHash"`
	AuthorName            string `json:"authorName"`
	AuthorDate            string `json:"authorDate"`
	CommitterName         string `json:"committerName"`
	CommitterDate         string `json:"committerDate"`
	Subject               string `json:"subject"`
	CommitNotes           string `json:"commitNotes"`
	OriginURL             string `json:"originUrl"`
	Branch                string `json:"branch"`
	Tag                   string `json:"tag"`

	// Version is the numeric portion of Tag when Tag is a strict
	// vMAJOR.MINOR.PATCH release tag, otherwise empty.
	Version string `json:"version,omitempty"`
}

// DeriveVersion sets Version from Tag if the tag matches the strict
// release-tag form, and clears it otherwise.
func (g *GitInfo) DeriveVersion() {
	if m := releaseTagPattern.FindStringSubmatch(g.Tag); m != nil {
		g.Version = m[1]
	} else {
		g.Version = ""
	}
}

// BuildInfo is composed from git provenance, run stats and the target name,
// and embedded into the generated runtime config.
type BuildInfo struct {
	ID      string   `json:"id"`
	Target  string   `json:"target"`
	BuiltAt int64    `json:"builtAt"`
	Git     *GitInfo `json:"git,omitempty"`
	Stats   Stats    `json:"stats"`
}
