package gitinfo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner maps a git subcommand to its canned output or error.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	for prefix, err := range f.errs {
		if strings.HasPrefix(key, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(key, prefix) {
			return out, nil
		}
	}
	return "", errors.New("unexpected git invocation: " + key)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: map[string]string{
			"log -1": strings.Join([]string{
				"0123456789abcdef0123456789abcdef01234567",
				"0123456",
				"A. Developer",
				"2026-08-01T10:00:00-05:00",
				"A. Committer",
				"2026-08-02T11:00:00-05:00",
				"fix the frobnicator",
			}, "\n"),
			"rev-parse --abbrev-ref HEAD":  "main",
			"config --get remote.origin.url": "https://github.com/dauglyon/kbase-ui",
			"describe --exact-match --tags": "v3.2.1",
			"notes show":                    "reviewed",
		},
		errs: map[string]error{},
	}
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector(newFakeRunner(), "/repo")
	info, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", info.CommitHash)
	assert.Equal(t, "0123456", info.CommitAbbreviatedHash)
	assert.Equal(t, "A. Developer", info.AuthorName)
	assert.Equal(t, "A. Committer", info.CommitterName)
	assert.Equal(t, "fix the frobnicator", info.Subject)
	assert.Equal(t, "main", info.Branch)
	assert.Equal(t, "https://github.com/dauglyon/kbase-ui", info.OriginURL)
	assert.Equal(t, "v3.2.1", info.Tag)
	assert.Equal(t, "3.2.1", info.Version)
	assert.Equal(t, "reviewed", info.CommitNotes)
}

func TestCollector_NoExactTag(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["describe"] = errors.New("fatal: no tag exactly matches")
	runner.errs["notes"] = errors.New("no notes")

	info, err := NewCollector(runner, "/repo").Collect(context.Background())
	require.NoError(t, err, "a missing exact tag is not an error at this layer")
	assert.Empty(t, info.Tag)
	assert.Empty(t, info.Version)
	assert.Empty(t, info.CommitNotes)
}

func TestCollector_LogFailureIsFatal(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["log"] = errors.New("fatal: not a git repository")

	_, err := NewCollector(runner, "/tmp").Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEAD commit")
}
