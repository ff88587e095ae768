package world

import "fmt"

// ObjectID identifies any world object. 0 is never assigned.
type ObjectID uint32

// PlayerID identifies a player seat. 0 is invalid; 1 is reserved for the
// server itself. Real players start at 2 and IDs are never reused within a
// game.
type PlayerID int32

const (
	PlayerIDInvalid PlayerID = 0
	PlayerIDServer  PlayerID = 1
	PlayerIDFirst   PlayerID = 2
)

// Point is a 3D tile coordinate. Z grows upward.
type Point struct {
	X, Y, Z int
}

func (p Point) Offset(dx, dy, dz int) Point {
	return Point{p.X + dx, p.Y + dy, p.Z + dz}
}

// ManhattanDistance ignores the Z axis; vision is computed per level.
func (p Point) ManhattanDistance(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Size is the extent of an environment's tile grid.
type Size struct {
	Width, Height, Depth int
}

func (s Size) Contains(p Point) bool {
	return p.X >= 0 && p.X < s.Width &&
		p.Y >= 0 && p.Y < s.Height &&
		p.Z >= 0 && p.Z < s.Depth
}

func (s Size) Volume() int {
	return s.Width * s.Height * s.Depth
}

// Direction is a movement direction: eight planar directions plus up/down.
type Direction byte

const (
	DirNone Direction = iota
	DirNorth
	DirNortheast
	DirEast
	DirSoutheast
	DirSouth
	DirSouthwest
	DirWest
	DirNorthwest
	DirUp
	DirDown
)

var dirDeltas = [...][3]int{
	DirNone:      {0, 0, 0},
	DirNorth:     {0, -1, 0},
	DirNortheast: {1, -1, 0},
	DirEast:      {1, 0, 0},
	DirSoutheast: {1, 1, 0},
	DirSouth:     {0, 1, 0},
	DirSouthwest: {-1, 1, 0},
	DirWest:      {-1, 0, 0},
	DirNorthwest: {-1, -1, 0},
	DirUp:        {0, 0, 1},
	DirDown:      {0, 0, -1},
}

func (d Direction) Delta() (dx, dy, dz int) {
	if int(d) >= len(dirDeltas) {
		return 0, 0, 0
	}
	v := dirDeltas[d]
	return v[0], v[1], v[2]
}

// OrthoNeighbors is the 6-neighborhood used by flood fills: four planar
// directions plus up and down.
var OrthoNeighbors = [6][3]int{
	{0, -1, 0}, {1, 0, 0}, {0, 1, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
}

// VisibilityMode selects which vision-tracking algorithm an environment uses.
type VisibilityMode int

const (
	// VisibilityAllVisible: every tile of the environment is always visible.
	VisibilityAllVisible VisibilityMode = iota
	// VisibilityGlobalFOV: open areas and their neighbors are visible,
	// growing monotonically as terrain is opened up.
	VisibilityGlobalFOV
	// VisibilityLivingLOS: per-living line of sight.
	VisibilityLivingLOS
)

func (m VisibilityMode) String() string {
	switch m {
	case VisibilityAllVisible:
		return "AllVisible"
	case VisibilityGlobalFOV:
		return "GlobalFOV"
	case VisibilityLivingLOS:
		return "LivingLOS"
	default:
		return fmt.Sprintf("VisibilityMode(%d)", int(m))
	}
}

// TileData is the terrain and interior material of one tile.
type TileData struct {
	TerrainID  uint16
	InteriorID uint16
}

// TurnMode selects how livings take their turns within a tick.
type TurnMode int

const (
	// TurnModeSimultaneous: all livings choose actions for the same turn;
	// the tick waits until every connected player has replied.
	TurnModeSimultaneous TurnMode = iota
	// TurnModeSequential: livings act one at a time in object-ID order.
	TurnModeSequential
)

// ObjectVisibility is how much of an object a given player may observe.
type ObjectVisibility int

const (
	VisibilityNone ObjectVisibility = iota
	VisibilityPublic
	VisibilityAll // implies debug-level detail
)

// PropertyID names a mutable object property.
type PropertyID int

const (
	PropertyName PropertyID = iota + 1
	PropertyHitPoints
	PropertyEnergy
	PropertyWornState
	PropertyWieldedState
)

// PropertyVisibility classifies who may observe a property change.
type PropertyVisibility int

const (
	PropertyVisPublic   PropertyVisibility = iota // anyone who sees the object
	PropertyVisFriendly                           // controller only
)

// Visibility returns the visibility class of a property.
func (p PropertyID) Visibility() PropertyVisibility {
	switch p {
	case PropertyName, PropertyWornState, PropertyWieldedState:
		return PropertyVisPublic
	default:
		return PropertyVisFriendly
	}
}
