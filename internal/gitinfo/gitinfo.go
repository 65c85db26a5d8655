// Package gitinfo extracts the repository provenance embedded into build
// artifacts. All git invocations go through process.Runner so the textual
// parsing is testable without a real repository.
package gitinfo

import (
	"context"
	"fmt"
	"strings"

	"github.com/dauglyon/kbase-ui/internal/ir"
	"github.com/dauglyon/kbase-ui/internal/process"
)

// logFormat asks git for one record per line in a fixed field order:
// hash, abbreviated hash, author name, author date, committer name,
// committer date, subject.
const logFormat = "%H%n%h%n%an%n%aI%n%cn%n%cI%n%s"

// Collector reads git metadata from a working tree.
type Collector struct {
	runner process.Runner
	dir    string
}

// NewCollector returns a Collector for the repository at dir.
func NewCollector(runner process.Runner, dir string) *Collector {
	return &Collector{runner: runner, dir: dir}
}

// Collect gathers the full provenance record for HEAD. A missing exact tag
// and missing commit notes are normal conditions, not errors; any other
// git failure is returned unchanged.
func (c *Collector) Collect(ctx context.Context) (*ir.GitInfo, error) {
	out, err := c.git(ctx, "log", "-1", "--pretty=format:"+logFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 7 {
		return nil, fmt.Errorf("unexpected git log output: %q", out)
	}

	info := &ir.GitInfo{
		CommitHash:            lines[0],
		CommitAbbreviatedHash: lines[1],
		AuthorName:            lines[2],
		AuthorDate:            lines[3],
		CommitterName:         lines[4],
		CommitterDate:         lines[5],
		Subject:               lines[6],
	}

	branch, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to read branch: %w", err)
	}
	info.Branch = branch

	origin, err := c.git(ctx, "config", "--get", "remote.origin.url")
	if err == nil {
		info.OriginURL = origin
	}

	// No exact tag on HEAD is represented as an empty tag; whether that
	// is acceptable is the release verifier's call, not ours.
	if tag, err := c.git(ctx, "describe", "--exact-match", "--tags"); err == nil {
		info.Tag = tag
	}

	if notes, err := c.git(ctx, "notes", "show"); err == nil {
		info.CommitNotes = notes
	}

	info.DeriveVersion()
	return info, nil
}

func (c *Collector) git(ctx context.Context, args ...string) (string, error) {
	out, err := c.runner.Output(ctx, c.dir, "git", args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
