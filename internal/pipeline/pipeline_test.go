package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner satisfies process.Runner without subprocesses: npm installs
// are no-ops and git queries return a canned repository.
type fakeRunner struct {
	tagged bool
	calls  []string
}

func (f *fakeRunner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)

	if name == "npm" {
		return "", nil
	}

	key := strings.Join(args, " ")
	switch {
	case strings.HasPrefix(key, "log -1"):
		return strings.Join([]string{
			"0123456789abcdef0123456789abcdef01234567",
			"0123456",
			"A. Developer",
			"2026-08-01T10:00:00-05:00",
			"A. Committer",
			"2026-08-02T11:00:00-05:00",
			"assemble the ui",
		}, "\n"), nil
	case strings.HasPrefix(key, "rev-parse --abbrev-ref"):
		return "main", nil
	case strings.HasPrefix(key, "config --get"):
		return "https://github.com/dauglyon/kbase-ui", nil
	case strings.HasPrefix(key, "describe"):
		if f.tagged {
			return "v3.2.1", nil
		}
		return "", errors.New("fatal: no tag exactly matches")
	case strings.HasPrefix(key, "notes"):
		return "", errors.New("no notes")
	}
	return "", errors.New("unexpected invocation: " + call)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// fixtureProject lays out a minimal buildable project.
func fixtureProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "src", "index.html"),
		`<html><head><link href="style.css" rel="stylesheet"></head>`+
			`<body><script src="app.js"></script></body></html>`)
	writeFile(t, filepath.Join(dir, "src", "app.js"), "define([], function () {});")
	writeFile(t, filepath.Join(dir, "src", "style.css"), "body { color: red; }")

	writeFile(t, filepath.Join(dir, "config", "build", "defaults.yml"),
		"release: false\ndist: false\nvfs: false\n")
	writeFile(t, filepath.Join(dir, "config", "build", "dev.yml"), "")
	writeFile(t, filepath.Join(dir, "config", "build", "ci.yml"), "dist: true\nvfs: true\n")
	writeFile(t, filepath.Join(dir, "config", "build", "prod.yml"),
		"release: true\ndist: true\nvfs: true\n")

	writeFile(t, filepath.Join(dir, "config", "plugins.yml"), "plugins:\n  - alpha\n")
	writeFile(t, filepath.Join(dir, "plugins", "alpha", "install.yml"), "name: alpha")
	writeFile(t, filepath.Join(dir, "plugins", "alpha", "test", "spec.yml"), "case: loads")

	writeFile(t, filepath.Join(dir, "config", "dependencies.yml"),
		"packages:\n  - name: jquery\n")
	writeFile(t, filepath.Join(dir, "node_modules", "jquery", "jquery.js"), "jq")

	writeFile(t, filepath.Join(dir, "config", "ui.yml"), "title: kbase-ui\n")
	writeFile(t, filepath.Join(dir, "config", "release.yml"), "version: 3.2.1\n")
	writeFile(t, filepath.Join(dir, "config", "deploy", "ci.yml"), "env: ci\nhost: ci.kbase.us\n")

	writeFile(t, filepath.Join(dir, "release-notes", "RELEASE_NOTES_3.2.1.md"), "# 3.2.1\n")
	return dir
}

func newTestPipeline(dir string, runner *fakeRunner) *Pipeline {
	p := New(dir)
	p.Runner = runner
	return p
}

func TestRun_UnknownBuildTypeIsUsageError(t *testing.T) {
	p := newTestPipeline(fixtureProject(t), &fakeRunner{})

	var uerr *UsageError
	_, err := p.Run(context.Background(), "nope")
	require.ErrorAs(t, err, &uerr)

	_, err = p.Run(context.Background(), "")
	require.ErrorAs(t, err, &uerr)
}

func TestRun_FullDistBuild(t *testing.T) {
	dir := fixtureProject(t)
	runner := &fakeRunner{tagged: true}
	p := newTestPipeline(dir, runner)

	var events []StageEvent
	p.Callback = func(e StageEvent) { events = append(events, e) }

	state, err := p.Run(context.Background(), "ci")
	require.NoError(t, err)

	// 1. Every stage ran, in the fixed order.
	assert.Equal(t, []string{
		"setup", "install-npm-dependencies", "install-vendored-dependencies",
		"install-plugins", "merge-configs", "create-build-info", "verify-version",
		"write-config", "make-deploy-configs", "cache-bust", "make-dist",
		"minify", "make-module-vfs", "cleanup",
	}, state.Steps)

	// 2. Plugin installed and its tests relocated.
	assert.FileExists(t, filepath.Join(dir, "build", "modules", "plugins", "alpha", "install.yml"))
	assert.FileExists(t, filepath.Join(dir, "test", "integration", "plugins", "alpha", "spec.yml"))
	assert.NoDirExists(t, filepath.Join(dir, "build", "modules", "plugins", "alpha", "test"))

	// 3. Vendored dependency flattened into the module namespace.
	assert.FileExists(t, filepath.Join(dir, "build", "modules", "node_modules", "jquery", "jquery.js"))

	// 4. Runtime config carries the merge and the build info.
	raw, err := os.ReadFile(filepath.Join(dir, "build", "modules", "config", "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title": "kbase-ui"`)
	assert.Contains(t, string(raw), `"buildInfo"`)
	assert.Contains(t, string(raw), "0123456789abcdef")

	// 5. Deploy YAML converted 1:1 to JSON.
	raw, err = os.ReadFile(filepath.Join(dir, "build", "deploy", "ci.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"host": "ci.kbase.us"`)

	// 6. Entry page cache-busted with the abbreviated hash.
	raw, err = os.ReadFile(filepath.Join(dir, "build", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `app.js?cb=0123456`)
	assert.Contains(t, string(raw), `style.css?cb=0123456`)

	// 7. Dist tree exists with the generated module vfs.
	raw, err = os.ReadFile(filepath.Join(dir, "dist", "moduleVfs.js"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "global.moduleVfs")
	assert.Contains(t, string(raw), `scripts["app.js`)

	// 8. Scratch removed by cleanup; state bookkeeping populated.
	assert.NoDirExists(t, filepath.Join(dir, "build", "scratch"))
	require.NotNil(t, state.Git)
	assert.Equal(t, "3.2.1", state.Git.Version)
	require.NotNil(t, state.BuildInfo)
	assert.NotEmpty(t, state.BuildInfo.ID)

	// 9. Optional stages reported as completed, none skipped.
	for _, e := range events {
		assert.NotEqual(t, "skipped", e.Status, e.Stage)
	}
}

func TestRun_DevBuildSkipsOptionalStages(t *testing.T) {
	dir := fixtureProject(t)
	p := newTestPipeline(dir, &fakeRunner{tagged: false})

	state, err := p.Run(context.Background(), "dev")
	require.NoError(t, err, "an untagged HEAD never fails a non-release build")

	assert.NotContains(t, state.Steps, "make-dist")
	assert.NotContains(t, state.Steps, "minify")
	assert.NotContains(t, state.Steps, "make-module-vfs")
	assert.NoDirExists(t, filepath.Join(dir, "dist"))

	require.NotNil(t, state.Git)
	assert.Empty(t, state.Git.Tag)
	assert.Empty(t, state.Git.Version, "derived version is null without an exact tag")
}

func TestRun_ReleaseFailsFastOnUntaggedHead(t *testing.T) {
	dir := fixtureProject(t)
	p := newTestPipeline(dir, &fakeRunner{tagged: false})

	_, err := p.Run(context.Background(), "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify-version")

	// Fail-fast: no stage after the failing one ran.
	assert.NoFileExists(t, filepath.Join(dir, "build", "modules", "config", "config.json"))
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
}

func TestRun_ReleasePassesWhenTagMatches(t *testing.T) {
	dir := fixtureProject(t)
	p := newTestPipeline(dir, &fakeRunner{tagged: true})

	state, err := p.Run(context.Background(), "prod")
	require.NoError(t, err)
	assert.Contains(t, state.Steps, "verify-version")
	assert.Equal(t, "3.2.1", state.Git.Version)
}
