// Package release verifies that a release build's declared version, git
// tag, and release notes agree before the build is allowed to finish.
package release

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/logging"
)

var (
	versionSuffixPattern = regexp.MustCompile(`\d+\.\d+\.\d+$`)
	releaseTagPattern    = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
)

// VersionMismatchError reports a failed release check, naming the values
// that disagree. Fatal; raised for release builds only.
type VersionMismatchError struct {
	Check    string
	Declared string
	Actual   string
}

func (e *VersionMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("release verification failed: %s (declared %q)", e.Check, e.Declared)
	}
	return fmt.Sprintf("release verification failed: %s (declared %q, actual %q)", e.Check, e.Declared, e.Actual)
}

// NotesPath is the conventional release-notes location for a version.
func NotesPath(projectDir, version string) string {
	return filepath.Join(projectDir, "release-notes", fmt.Sprintf("RELEASE_NOTES_%s.md", version))
}

// Verify runs the release checks against the declared version and git
// provenance. For non-release builds it logs and returns nil; a missing
// exact tag is tolerated there by construction, since the git layer
// already represents it as an empty tag.
//
// For release builds the five checks run in order, each fatal:
// a non-empty declared version; a semver-suffixed declared version; a
// strict vMAJOR.MINOR.PATCH tag on HEAD; character-for-character equality
// of the tag's numeric portion with the declared version; and a
// release-notes file at the conventional path.
func Verify(projectDir string, cfg ir.BuildConfig, declaredVersion string, git *ir.GitInfo) error {
	log := logging.WithStage("verify-version")
	if !cfg.Release {
		log.Info("not a release build, skipping version verification", "target", cfg.Target)
		return nil
	}

	if declaredVersion == "" {
		return &VersionMismatchError{Check: "release config declares no version"}
	}
	if !versionSuffixPattern.MatchString(declaredVersion) {
		return &VersionMismatchError{
			Check:    "declared version is not MAJOR.MINOR.PATCH",
			Declared: declaredVersion,
		}
	}
	if git == nil || !releaseTagPattern.MatchString(git.Tag) {
		tag := ""
		if git != nil {
			tag = git.Tag
		}
		return &VersionMismatchError{
			Check:    "HEAD is not tagged vMAJOR.MINOR.PATCH",
			Declared: declaredVersion,
			Actual:   tag,
		}
	}
	tagVersion := strings.TrimPrefix(git.Tag, "v")
	if tagVersion != declaredVersion {
		return &VersionMismatchError{
			Check:    "git tag does not match declared version",
			Declared: declaredVersion,
			Actual:   git.Tag,
		}
	}
	notes := NotesPath(projectDir, declaredVersion)
	if !fsutil.FileExists(notes) {
		return &VersionMismatchError{
			Check:    fmt.Sprintf("release notes missing at %s", notes),
			Declared: declaredVersion,
		}
	}

	log.Info("release verification passed", "version", declaredVersion, "tag", git.Tag)
	return nil
}
