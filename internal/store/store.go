package store

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"mazechase/internal/grid"
)

// ErrNotFound is returned when a slot has no saved map
var ErrNotFound = errors.New("saved map not found")

// SavedMap is a map stored in a slot of the state directory
type SavedMap struct {
	Slot    string     `json:"slot"`
	Cols    int        `json:"cols"`
	Rows    int        `json:"rows"`
	SavedAt time.Time  `json:"saved_at"`
	Grid    *grid.Grid `json:"-"`
	Path    string     `json:"path"` // Full path to the slot directory
}

const (
	stateDirEnv     = "MAZECHASE_STATE_DIR"
	defaultStateDir = ".mazechase"
	maxSlotLen      = 50
)

// GetStateDir picks the directory holding saved maps, config and logs: dir if set,
// else $MAZECHASE_STATE_DIR, else .mazechase. A missing directory is created only when create is set.
func GetStateDir(dir string, create bool) (string, error) {
	if dir == "" {
		dir = cmp.Or(os.Getenv(stateDirEnv), defaultStateDir)
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("state directory %s is not a directory", dir)
	case err == nil:
		return dir, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("failed to access state directory %s: %w", dir, err)
	case !create:
		return "", fmt.Errorf("no saved games yet: state directory %s does not exist (run play or new-map first, or pass --state-dir): %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	return dir, nil
}

// SlotName turns a user supplied name into a slot name made of [a-z0-9] runs joined by
// single dashes, at most 50 bytes long
func SlotName(name string) (string, error) {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if !('a' <= r && r <= 'z' || '0' <= r && r <= '9') {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			if b.Len()+2 > maxSlotLen {
				break
			}
			b.WriteByte('-')
			pendingDash = false
		}
		if b.Len() == maxSlotLen {
			break
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("invalid slot name %q: use letters a-z or digits", name)
	}
	return b.String(), nil
}

func mapsDir(stateDir string) string {
	return filepath.Join(stateDir, "maps")
}

// SaveMap writes g into the given slot, replacing what was there
func SaveMap(stateDir, name string, g *grid.Grid) (*SavedMap, error) {
	slot, err := SlotName(name)
	if err != nil {
		return nil, err
	}

	slotPath := filepath.Join(mapsDir(stateDir), slot)
	if err := os.MkdirAll(slotPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create map directory: %w", err)
	}

	sm := &SavedMap{
		Slot:    slot,
		Cols:    g.Cols(),
		Rows:    g.Rows(),
		SavedAt: time.Now().UTC(),
		Grid:    g.Clone(),
		Path:    slotPath,
	}
	if err := saveMapFiles(sm); err != nil {
		return nil, err
	}
	return sm, nil
}

// LoadMap reads the map stored in a slot
func LoadMap(stateDir, name string) (*SavedMap, error) {
	slot, err := SlotName(name)
	if err != nil {
		return nil, err
	}

	slotPath := filepath.Join(mapsDir(stateDir), slot)
	if _, err := os.Stat(slotPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slot)
		}
		return nil, fmt.Errorf("failed to stat map directory: %w", err)
	}

	sm := &SavedMap{
		Slot: slot,
		Path: slotPath,
	}
	if err := loadMapFiles(sm); err != nil {
		return nil, err
	}
	return sm, nil
}

// ListMaps returns all saved maps sorted by slot
func ListMaps(stateDir string) ([]*SavedMap, error) {
	entries, err := os.ReadDir(mapsDir(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []*SavedMap{}, nil
		}
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	maps := []*SavedMap{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sm, err := LoadMap(stateDir, entry.Name())
		if err != nil {
			// Skip invalid maps
			continue
		}
		maps = append(maps, sm)
	}

	sort.Slice(maps, func(i, j int) bool {
		return maps[i].Slot < maps[j].Slot
	})
	return maps, nil
}

// DeleteMap removes a slot
func DeleteMap(stateDir, name string) error {
	slot, err := SlotName(name)
	if err != nil {
		return err
	}

	slotPath := filepath.Join(mapsDir(stateDir), slot)
	if _, err := os.Stat(slotPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, slot)
		}
		return fmt.Errorf("failed to stat map directory: %w", err)
	}
	if err := os.RemoveAll(slotPath); err != nil {
		return fmt.Errorf("failed to remove map directory: %w", err)
	}
	return nil
}

// saveMapFiles saves map data as individual files
func saveMapFiles(sm *SavedMap) error {
	text, err := sm.Grid.MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}

	// Readers never see a partially written grid
	tmp := filepath.Join(sm.Path, "grid.tmp")
	if err := os.WriteFile(tmp, text, 0600); err != nil {
		return fmt.Errorf("failed to write grid file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(sm.Path, "grid")); err != nil {
		return fmt.Errorf("failed to move grid file into place: %w", err)
	}

	if err := os.WriteFile(filepath.Join(sm.Path, "cols"), []byte(strconv.Itoa(sm.Cols)), 0600); err != nil {
		return fmt.Errorf("failed to write cols file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sm.Path, "rows"), []byte(strconv.Itoa(sm.Rows)), 0600); err != nil {
		return fmt.Errorf("failed to write rows file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sm.Path, "saved-at"), []byte(sm.SavedAt.Format(time.RFC3339Nano)), 0600); err != nil {
		return fmt.Errorf("failed to write saved-at file: %w", err)
	}
	return nil
}

// loadMapFiles loads map data from individual files
func loadMapFiles(sm *SavedMap) error {
	gridData, err := os.ReadFile(filepath.Join(sm.Path, "grid"))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s has no grid file", ErrNotFound, sm.Slot)
		}
		return fmt.Errorf("failed to read grid file: %w", err)
	}
	g := &grid.Grid{}
	if err := g.UnmarshalText(gridData); err != nil {
		return fmt.Errorf("failed to parse grid file: %w", err)
	}
	sm.Grid = g

	cols, err := readIntFile(filepath.Join(sm.Path, "cols"))
	if err != nil {
		return err
	}
	rows, err := readIntFile(filepath.Join(sm.Path, "rows"))
	if err != nil {
		return err
	}
	if cols != g.Cols() || rows != g.Rows() {
		return fmt.Errorf("saved map %s claims %dx%d but grid is %dx%d", sm.Slot, cols, rows, g.Cols(), g.Rows())
	}
	sm.Cols = cols
	sm.Rows = rows

	savedAtData, err := os.ReadFile(filepath.Join(sm.Path, "saved-at"))
	if err != nil {
		return fmt.Errorf("failed to read saved-at file: %w", err)
	}
	savedAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(savedAtData)))
	if err != nil {
		return fmt.Errorf("failed to parse saved-at: %w", err)
	}
	sm.SavedAt = savedAt

	return nil
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s file: %w", filepath.Base(path), err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return n, nil
}
