package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TerrainTemplate holds static data for a terrain material loaded from YAML.
type TerrainTemplate struct {
	ID         uint16 `yaml:"id"`
	Name       string `yaml:"name"`
	SeeThrough bool   `yaml:"see_through"`
	Walkable   bool   `yaml:"walkable"`
}

// InteriorTemplate holds static data for an interior (tile contents such as
// walls, trees, stairs) loaded from YAML.
type InteriorTemplate struct {
	ID         uint16 `yaml:"id"`
	Name       string `yaml:"name"`
	SeeThrough bool   `yaml:"see_through"`
	Blocker    bool   `yaml:"blocker"`
}

type terrainListFile struct {
	Terrains  []TerrainTemplate  `yaml:"terrains"`
	Interiors []InteriorTemplate `yaml:"interiors"`
}

// TerrainTable holds all terrain and interior materials indexed by ID.
type TerrainTable struct {
	terrains  map[uint16]*TerrainTemplate
	interiors map[uint16]*InteriorTemplate
}

// LoadTerrainTable loads terrain materials from a YAML file.
func LoadTerrainTable(path string) (*TerrainTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terrain list: %w", err)
	}
	var f terrainListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse terrain list: %w", err)
	}
	if len(f.Terrains) == 0 {
		return nil, fmt.Errorf("terrain list %s has no terrains", path)
	}
	return NewTerrainTable(f.Terrains, f.Interiors), nil
}

// NewTerrainTable builds a table from in-memory templates.
func NewTerrainTable(terrains []TerrainTemplate, interiors []InteriorTemplate) *TerrainTable {
	t := &TerrainTable{
		terrains:  make(map[uint16]*TerrainTemplate, len(terrains)),
		interiors: make(map[uint16]*InteriorTemplate, len(interiors)),
	}
	for i := range terrains {
		tmpl := &terrains[i]
		t.terrains[tmpl.ID] = tmpl
	}
	for i := range interiors {
		tmpl := &interiors[i]
		t.interiors[tmpl.ID] = tmpl
	}
	return t
}

func (t *TerrainTable) Terrain(id uint16) *TerrainTemplate   { return t.terrains[id] }
func (t *TerrainTable) Interior(id uint16) *InteriorTemplate { return t.interiors[id] }

func (t *TerrainTable) Count() int { return len(t.terrains) + len(t.interiors) }

// SeeThrough reports whether light passes a tile with the given terrain and
// interior. Unknown IDs are treated as opaque.
func (t *TerrainTable) SeeThrough(terrainID, interiorID uint16) bool {
	terr := t.terrains[terrainID]
	if terr == nil || !terr.SeeThrough {
		return false
	}
	if interiorID == 0 {
		return true
	}
	in := t.interiors[interiorID]
	return in != nil && in.SeeThrough
}

// Walkable reports whether a living can stand on a tile with the given
// terrain and interior.
func (t *TerrainTable) Walkable(terrainID, interiorID uint16) bool {
	terr := t.terrains[terrainID]
	if terr == nil || !terr.Walkable {
		return false
	}
	if interiorID == 0 {
		return true
	}
	in := t.interiors[interiorID]
	return in != nil && !in.Blocker
}
