package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dauglyon/kbase-ui/internal/ir"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// noGitRunner fails any subprocess call; tests that never reach github
// sources use it to prove they stay local.
type noGitRunner struct{}

func (noGitRunner) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	return "", errors.New("unexpected subprocess: " + name)
}

func newSourcer(t *testing.T) (*Sourcer, string) {
	t.Helper()
	project := t.TempDir()
	s := &Sourcer{
		Runner:      noGitRunner{},
		InternalDir: filepath.Join(project, "plugins"),
		RepoRoot:    filepath.Dir(project),
		DownloadDir: filepath.Join(project, "scratch", "downloads"),
		DestDir:     filepath.Join(project, "build", "modules", "plugins"),
	}
	require.NoError(t, os.MkdirAll(s.DownloadDir, 0755))
	return s, project
}

func treeOf(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestInstall_InternalAndDirectorySources(t *testing.T) {
	s, project := newSourcer(t)

	// pluginA ships inside the internal plugins folder.
	writeFile(t, filepath.Join(s.InternalDir, "pluginA", "install.yml"), "name: pluginA")
	writeFile(t, filepath.Join(s.InternalDir, "pluginA", "modules", "main.js"), "a")

	// pluginB lives in a sibling repository under the default subpath.
	repoRoot := filepath.Dir(project)
	writeFile(t, filepath.Join(repoRoot, "pluginB", "dist", "plugin", "install.yml"), "name: pluginB")
	writeFile(t, filepath.Join(repoRoot, "pluginB", "dist", "plugin", "modules", "widget.js"), "b")

	manifest := &ir.PluginManifest{Plugins: []ir.PluginDescriptor{
		{Name: "pluginA", Source: ir.InternalSource{}},
		{Name: "pluginB", Version: "1.0.0", Source: ir.DirectorySource{}},
	}}
	require.NoError(t, s.InstallAll(context.Background(), manifest))

	assert.Equal(t, []string{"install.yml", "modules/main.js"},
		treeOf(t, filepath.Join(s.DestDir, "pluginA")),
		"pluginA mirrors the internal plugins folder")
	assert.Equal(t, []string{"install.yml", "modules/widget.js"},
		treeOf(t, filepath.Join(s.DestDir, "pluginB")),
		"pluginB mirrors <repoRoot>/pluginB/dist/plugin")
}

func TestInstall_OrderIndependent(t *testing.T) {
	s, _ := newSourcer(t)
	for _, name := range []string{"one", "two", "three"} {
		writeFile(t, filepath.Join(s.InternalDir, name, name+".js"), name)
	}

	forward := &ir.PluginManifest{Plugins: []ir.PluginDescriptor{
		{Name: "one", Source: ir.InternalSource{}},
		{Name: "two", Source: ir.InternalSource{}},
		{Name: "three", Source: ir.InternalSource{}},
	}}
	require.NoError(t, s.InstallAll(context.Background(), forward))
	first := treeOf(t, s.DestDir)

	require.NoError(t, os.RemoveAll(s.DestDir))
	reversed := &ir.PluginManifest{Plugins: []ir.PluginDescriptor{
		{Name: "three", Source: ir.InternalSource{}},
		{Name: "two", Source: ir.InternalSource{}},
		{Name: "one", Source: ir.InternalSource{}},
	}}
	require.NoError(t, s.InstallAll(context.Background(), reversed))

	assert.Equal(t, first, treeOf(t, s.DestDir))
}

func TestInstall_MissingInternalPluginIsSourceUnavailable(t *testing.T) {
	s, _ := newSourcer(t)

	err := s.Install(context.Background(), ir.PluginDescriptor{Name: "ghost", Source: ir.InternalSource{}})
	var serr *SourceUnavailableError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "ghost", serr.Plugin)
}

func TestInstall_DirectoryExplicitRootAndCwd(t *testing.T) {
	s, _ := newSourcer(t)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "custom", "out", "main.js"), "x")

	desc := ir.PluginDescriptor{
		Name:   "custom",
		CWD:    "out",
		Source: ir.DirectorySource{Root: root},
	}
	require.NoError(t, s.Install(context.Background(), desc))
	assert.FileExists(t, filepath.Join(s.DestDir, "custom", "main.js"))
}

func TestRelocateTests(t *testing.T) {
	s, project := newSourcer(t)
	testTree := filepath.Join(project, "test", "integration", "plugins")

	// withTests ships a test directory, bare does not.
	writeFile(t, filepath.Join(s.DestDir, "withTests", "main.js"), "m")
	writeFile(t, filepath.Join(s.DestDir, "withTests", "test", "spec.yml"), "case: 1")
	writeFile(t, filepath.Join(s.DestDir, "bare", "main.js"), "m")

	results, err := RelocateTests(s.DestDir, testTree)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]TestRelocation{}
	for _, r := range results {
		byName[r.Plugin] = r
	}

	// 1. Tests moved into the central tree keyed by plugin name.
	assert.True(t, byName["withTests"].Moved)
	assert.FileExists(t, filepath.Join(testTree, "withTests", "spec.yml"))

	// 2. The plugin-local copy is gone: moved, not copied.
	assert.NoDirExists(t, filepath.Join(s.DestDir, "withTests", "test"))

	// 3. A plugin without tests is recorded but nothing moves.
	assert.False(t, byName["bare"].Moved)
	assert.NoDirExists(t, filepath.Join(testTree, "bare"))
}
