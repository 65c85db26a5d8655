package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dauglyon/kbase-ui/internal/fsutil"
	"github.com/dauglyon/kbase-ui/internal/logging"
)

// TestRelocation records whether one installed plugin shipped a test
// suite and where it was moved.
type TestRelocation struct {
	Plugin string
	Moved  bool
	Dest   string
}

// RelocateTests sweeps every installed plugin directory and moves its
// conventional test subdirectory into the central integration-test tree,
// keyed by plugin name. Tests always travel with the installation; they
// are never left behind in the plugin's own tree. Plugins without tests
// are recorded with a warning.
func RelocateTests(pluginsDir, testTree string) ([]TestRelocation, error) {
	log := logging.WithStage("install-plugins")

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed plugins: %w", err)
	}

	var out []TestRelocation
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		testDir := filepath.Join(pluginsDir, name, "test")
		if !fsutil.DirExists(testDir) {
			log.Warn("plugin ships without tests", "plugin", name)
			out = append(out, TestRelocation{Plugin: name})
			continue
		}
		dest := filepath.Join(testTree, name)
		if err := fsutil.MoveDir(testDir, dest); err != nil {
			return nil, fmt.Errorf("failed to relocate tests for plugin %s: %w", name, err)
		}
		log.Info("relocated plugin tests", "plugin", name, "dest", dest)
		out = append(out, TestRelocation{Plugin: name, Moved: true, Dest: dest})
	}
	return out, nil
}
