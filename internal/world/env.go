package world

import (
	"github.com/dwarrowdelf/server/internal/data"
)

// TerrainChangedHandler observes terrain/interior mutations of one
// environment. Handlers run synchronously on the engine goroutine before the
// corresponding MapChange is fanned out.
type TerrainChangedHandler func(p Point, old, new TileData)

// Environment is a map level: a dense 3D tile grid plus the movables
// standing in it.
type Environment struct {
	baseObject
	containment

	size       Size
	visibility VisibilityMode
	terrains   *data.TerrainTable
	tiles      []TileData

	// MinedTile is what a mined-out wall tile turns into.
	MinedTile TileData

	// SpawnLocation is where newly created controllables appear.
	SpawnLocation Point

	contents   map[Point][]Movable
	nextSubID  int
	terrainSub map[int]TerrainChangedHandler
	subOrder   []int
}

func (e *Environment) Size() Size                     { return e.size }
func (e *Environment) VisibilityMode() VisibilityMode { return e.visibility }

func (e *Environment) Contains(p Point) bool {
	return e.size.Contains(p)
}

func (e *Environment) tileIndex(p Point) int {
	return (p.Z*e.size.Height+p.Y)*e.size.Width + p.X
}

// GetTileData returns the tile at p. Out-of-bounds points read as zero.
func (e *Environment) GetTileData(p Point) TileData {
	if !e.Contains(p) {
		return TileData{}
	}
	return e.tiles[e.tileIndex(p)]
}

// SetTileData mutates one tile, notifies terrain subscribers, and emits a
// MapChange.
func (e *Environment) SetTileData(p Point, td TileData) {
	if !e.Contains(p) {
		return
	}
	old := e.tiles[e.tileIndex(p)]
	if old == td {
		return
	}
	e.tiles[e.tileIndex(p)] = td

	// Vision trackers first, so reveal batches reach clients before the
	// MapChange that references the opened tiles.
	for _, id := range e.subOrder {
		if fn, ok := e.terrainSub[id]; ok {
			fn(p, old, td)
		}
	}
	e.world.emit(MapChange{Environment: e, Location: p, OldTile: old, NewTile: td})
}

// SubscribeTerrainChanged registers a handler and returns a token for
// UnsubscribeTerrainChanged. Handlers fire in subscription order.
func (e *Environment) SubscribeTerrainChanged(fn TerrainChangedHandler) int {
	e.nextSubID++
	id := e.nextSubID
	e.terrainSub[id] = fn
	e.subOrder = append(e.subOrder, id)
	return id
}

func (e *Environment) UnsubscribeTerrainChanged(id int) {
	delete(e.terrainSub, id)
	for i, v := range e.subOrder {
		if v == id {
			e.subOrder = append(e.subOrder[:i], e.subOrder[i+1:]...)
			return
		}
	}
}

// GetContents returns the movables standing at p.
func (e *Environment) GetContents(p Point) []Movable {
	return e.contents[p]
}

// IsSeeThrough reports whether light passes the tile at p. Out-of-bounds
// tiles are opaque.
func (e *Environment) IsSeeThrough(p Point) bool {
	if !e.Contains(p) {
		return false
	}
	td := e.tiles[e.tileIndex(p)]
	return e.terrains.SeeThrough(td.TerrainID, td.InteriorID)
}

// IsWalkable reports whether a living can stand at p.
func (e *Environment) IsWalkable(p Point) bool {
	if !e.Contains(p) {
		return false
	}
	td := e.tiles[e.tileIndex(p)]
	return e.terrains.Walkable(td.TerrainID, td.InteriorID)
}

func (e *Environment) addContent(m Movable, p Point) {
	e.contents[p] = append(e.contents[p], m)
	e.containment.add(m)
}

func (e *Environment) removeContent(m Movable, p Point) {
	list := e.contents[p]
	for i, v := range list {
		if v == m {
			e.contents[p] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(e.contents[p]) == 0 {
		delete(e.contents, p)
	}
	e.containment.remove(m)
}
