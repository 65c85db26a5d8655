package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dauglyon/kbase-ui/internal/ir"
)

// SnapshotManager records a full copy of the build state before each
// stage, both in memory and as JSON files in the scratch tree. Snapshots
// exist purely for diagnostics and resumability analysis; the pipeline
// never consults them.
type SnapshotManager struct {
	dir     string
	history []*ir.State
}

// NewSnapshotManager returns a manager writing under scratchDir/snapshots.
func NewSnapshotManager(scratchDir string) *SnapshotManager {
	return &SnapshotManager{dir: filepath.Join(scratchDir, "snapshots")}
}

// Record snapshots the state about to enter the named stage. The copy is
// deep, so no stage can observe a later stage's writes through history.
func (m *SnapshotManager) Record(index int, stage string, state *ir.State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to snapshot state before %s: %w", stage, err)
	}

	var copied ir.State
	if err := json.Unmarshal(raw, &copied); err != nil {
		return fmt.Errorf("failed to snapshot state before %s: %w", stage, err)
	}
	m.history = append(m.history, &copied)

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(m.dir, fmt.Sprintf("%02d-%s.json", index, stage))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// History returns the ordered snapshots recorded so far.
func (m *SnapshotManager) History() []*ir.State {
	return m.history
}
