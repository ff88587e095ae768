package world

import (
	"testing"

	"go.uber.org/zap"
)

func pointSet(pts []Point) map[Point]bool {
	set := make(map[Point]bool, len(pts))
	for _, p := range pts {
		set[p] = true
	}
	return set
}

func TestVisibleLocationsRespectsRange(t *testing.T) {
	w := NewWorld(TurnModeSimultaneous, zap.NewNop())
	env := openEnv(w, 16, 16)

	from := Point{8, 8, 0}
	got := pointSet(VisibleLocations(env, from, 3))

	if !got[from] {
		t.Fatal("observer's own tile not visible")
	}
	if !got[Point{11, 8, 0}] {
		t.Fatal("tile at the range edge not visible")
	}
	if got[Point{12, 8, 0}] {
		t.Fatal("tile beyond range visible")
	}
	if got[Point{10, 10, 0}] {
		t.Fatal("tile beyond manhattan range visible")
	}
}

func TestVisibleLocationsBlockedByWall(t *testing.T) {
	w := NewWorld(TurnModeSimultaneous, zap.NewNop())
	env := w.CreateEnvironment("test", Size{Width: 16, Height: 16, Depth: 1},
		VisibilityLivingLOS, testTerrains(),
		func(p Point) TileData {
			if p.X == 10 {
				return TileData{TerrainID: 2}
			}
			return TileData{TerrainID: 1}
		})

	from := Point{8, 8, 0}
	got := pointSet(VisibleLocations(env, from, 5))

	// the wall itself is visible: only tiles strictly between block
	if !got[Point{10, 8, 0}] {
		t.Fatal("wall tile not visible")
	}
	if got[Point{11, 8, 0}] {
		t.Fatal("tile behind the wall visible")
	}
}

func TestVisibleLocationsClippedToBounds(t *testing.T) {
	w := NewWorld(TurnModeSimultaneous, zap.NewNop())
	env := openEnv(w, 4, 4)

	for _, p := range VisibleLocations(env, Point{0, 0, 0}, 6) {
		if !env.Contains(p) {
			t.Fatalf("out-of-bounds location %v reported visible", p)
		}
	}
}
