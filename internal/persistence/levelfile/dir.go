package levelfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"envforge.ai/internal/sim/state"
)

var ErrNotFound = errors.New("levelfile: world not found")

// Dir stores one file per world under Root, named by WorldId.
type Dir struct {
	Root string
	// Ext is the format used by Save; defaults to ExtZst.
	Ext string
}

func (d Dir) ext() string {
	if d.Ext == "" {
		return ExtZst
	}
	return d.Ext
}

func (d Dir) Path(worldID string) string {
	return filepath.Join(d.Root, worldID+d.ext())
}

func (d Dir) Save(worldID string, st *state.State) (string, error) {
	p := d.Path(worldID)
	return p, Write(p, worldID, st)
}

// Load finds the world in any supported format.
func (d Dir) Load(worldID string) (*state.State, error) {
	for _, e := range Extensions {
		p := filepath.Join(d.Root, worldID+e)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		lv, err := Read(p)
		if err != nil {
			return nil, err
		}
		return lv.State, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, worldID)
}

// List returns the level file paths in Root, sorted.
func (d Dir) List() ([]string, error) {
	ents, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || !IsLevelFile(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(d.Root, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
