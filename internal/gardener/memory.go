package gardener

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
)

const maxRecords = 10

// CycleRecord captures what happened in a single gardener cycle.
type CycleRecord struct {
	Tick        uint64  `json:"tick"`
	Year        float64 `json:"year"`
	Action      string  `json:"action"`
	LifeShare   float64 `json:"life_share"`
	MeanBiomass float64 `json:"mean_biomass"`
	CrisisLevel string  `json:"crisis_level"`
	Life        string  `json:"life,omitempty"`
	X           int     `json:"x,omitempty"`
	Y           int     `json:"y,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory is the gardener's short history, newest record last. It is
// kept on disk between runs so cooldowns survive restarts.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. A missing file yields empty
// memory; an empty path keeps memory in process only. A file that cannot be
// decoded is reported together with usable empty memory.
func LoadMemory(path string) (*CycleMemory, error) {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return mem, nil
	}
	if err != nil {
		return mem, fmt.Errorf("read gardener memory: %w", err)
	}
	if err := json.Unmarshal(data, mem); err != nil {
		mem.Records = nil
		return mem, fmt.Errorf("decode gardener memory %s: %w", path, err)
	}
	return mem, nil
}

// Save writes the memory next to its final path and renames it into place.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write gardener memory: %w", err)
	}
	return os.Rename(tmp, m.path)
}

// Record appends r, dropping the oldest records beyond maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	if over := len(m.Records) + 1 - maxRecords; over > 0 {
		m.Records = slices.Delete(m.Records, 0, over)
	}
	m.Records = append(m.Records, r)
}

// Last returns the newest record.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// LastAction returns the newest record that intervened.
func (m *CycleMemory) LastAction() (CycleRecord, bool) {
	for i := len(m.Records) - 1; i >= 0; i-- {
		if m.Records[i].Action != ActionNone {
			return m.Records[i], true
		}
	}
	return CycleRecord{}, false
}
