package game

import (
	"sort"
	"sync"

	"github.com/dwarrowdelf/server/internal/world"
)

// VisionTracker maintains what a player sees in one environment and pushes
// newly revealed terrain and objects to the client. Trackers for LOS and
// GlobalFOV environments live while the player has at least one controllable
// in the environment; AllVisible trackers live for the lifetime of the
// player once created.
type VisionTracker interface {
	// Start subscribes to terrain changes and pushes the initial state.
	Start()
	// Stop unsubscribes. The tracker must not be reused afterwards.
	Stop()

	AddLiving(l *world.LivingObject)
	RemoveLiving(l *world.LivingObject)

	// Sees reports whether the given location is currently visible.
	Sees(p world.Point) bool

	// Resync re-pushes the current visible state to a freshly bound user.
	Resync()

	persistent() bool
}

// movementObserver is implemented by trackers that need to react to object
// movement inside their environment.
type movementObserver interface {
	HandleObjectMoved(pts ...world.Point)
}

// ── Admin ──────────────────────────────────────────────────────────

// AdminVisionTracker sees everything everywhere. Stateless singleton shared
// by all admin players.
type AdminVisionTracker struct{}

var theAdminVisionTracker = &AdminVisionTracker{}

func (*AdminVisionTracker) Start()                           {}
func (*AdminVisionTracker) Stop()                            {}
func (*AdminVisionTracker) AddLiving(*world.LivingObject)    {}
func (*AdminVisionTracker) RemoveLiving(*world.LivingObject) {}
func (*AdminVisionTracker) Sees(world.Point) bool            { return true }
func (*AdminVisionTracker) Resync()                          {}
func (*AdminVisionTracker) persistent() bool                 { return true }

// ── AllVisible ─────────────────────────────────────────────────────

// AllVisibleVisionTracker reveals the whole environment up front. Visibility
// reduces to a bounds check, so it needs no terrain subscription.
type AllVisibleVisionTracker struct {
	player *Player
	env    *world.Environment
}

func NewAllVisibleVisionTracker(p *Player, env *world.Environment) *AllVisibleVisionTracker {
	return &AllVisibleVisionTracker{player: p, env: env}
}

func (t *AllVisibleVisionTracker) Start() {
	t.pushAll()
}

func (t *AllVisibleVisionTracker) Stop() {}

func (t *AllVisibleVisionTracker) AddLiving(*world.LivingObject)    {}
func (t *AllVisibleVisionTracker) RemoveLiving(*world.LivingObject) {}

func (t *AllVisibleVisionTracker) Sees(p world.Point) bool {
	return t.env.Contains(p)
}

func (t *AllVisibleVisionTracker) Resync() {
	t.pushAll()
}

func (t *AllVisibleVisionTracker) persistent() bool { return true }

func (t *AllVisibleVisionTracker) pushAll() {
	t.player.sendFullTerrain(t.env)
	t.player.sendEnvironmentObjects(t.env)
}

// ── GlobalFOV ──────────────────────────────────────────────────────

// GlobalFOVVisionTracker computes a dense per-tile visibility grid for the
// whole environment with a top-down scan, then grows it incrementally when
// terrain opens up.
type GlobalFOVVisionTracker struct {
	player *Player
	env    *world.Environment

	visible []bool
	subID   int
}

func NewGlobalFOVVisionTracker(p *Player, env *world.Environment) *GlobalFOVVisionTracker {
	return &GlobalFOVVisionTracker{player: p, env: env}
}

func (t *GlobalFOVVisionTracker) Start() {
	t.compute()
	t.subID = t.env.SubscribeTerrainChanged(t.onTerrainChanged)
	t.pushVisible()
}

func (t *GlobalFOVVisionTracker) Stop() {
	t.env.UnsubscribeTerrainChanged(t.subID)
}

func (t *GlobalFOVVisionTracker) AddLiving(*world.LivingObject)    {}
func (t *GlobalFOVVisionTracker) RemoveLiving(*world.LivingObject) {}

func (t *GlobalFOVVisionTracker) Sees(p world.Point) bool {
	if !t.env.Contains(p) {
		return false
	}
	return t.visible[t.index(p)]
}

func (t *GlobalFOVVisionTracker) Resync() {
	t.pushVisible()
}

func (t *GlobalFOVVisionTracker) persistent() bool { return false }

func (t *GlobalFOVVisionTracker) index(p world.Point) int {
	sz := t.env.Size()
	return (p.Z*sz.Height+p.Y)*sz.Width + p.X
}

// compute scans levels from the top down. A tile is visible when it or any
// of its six orthogonal neighbors is see-through. The scan stops below the
// first fully sealed level; tiles under it stay hidden until digging opens
// them from an already visible side.
func (t *GlobalFOVVisionTracker) compute() {
	sz := t.env.Size()
	t.visible = make([]bool, sz.Volume())
	for z := sz.Depth - 1; z >= 0; z-- {
		if t.computeLevel(z) == 0 {
			return
		}
	}
}

// computeLevel fills one z level, rows in parallel, and returns the number
// of visible tiles found.
func (t *GlobalFOVVisionTracker) computeLevel(z int) int {
	sz := t.env.Size()
	counts := make([]int, sz.Height)
	var wg sync.WaitGroup
	for y := 0; y < sz.Height; y++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			n := 0
			for x := 0; x < sz.Width; x++ {
				p := world.Point{X: x, Y: y, Z: z}
				if t.tileVisible(p) {
					t.visible[t.index(p)] = true
					n++
				}
			}
			counts[y] = n
		}(y)
	}
	wg.Wait()
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func (t *GlobalFOVVisionTracker) tileVisible(p world.Point) bool {
	if t.env.IsSeeThrough(p) {
		return true
	}
	for _, d := range world.OrthoNeighbors {
		n := p.Offset(d[0], d[1], d[2])
		if t.env.Contains(n) && t.env.IsSeeThrough(n) {
			return true
		}
	}
	return false
}

// onTerrainChanged grows the visible set when an already-visible tile turns
// see-through, flooding outward through see-through tiles. Each tile is
// revealed at most once over the tracker's lifetime.
func (t *GlobalFOVVisionTracker) onTerrainChanged(p world.Point, old, cur world.TileData) {
	if !t.visible[t.index(p)] {
		return
	}
	if !t.env.IsSeeThrough(p) {
		return
	}
	newly := t.floodReveal(p)
	if len(newly) == 0 {
		return
	}
	t.player.sendTerrainReveal(t.env, newly)
	for _, rp := range newly {
		for _, m := range t.env.GetContents(rp) {
			t.player.sendObjectData(m)
		}
	}
}

func (t *GlobalFOVVisionTracker) floodReveal(from world.Point) []world.Point {
	var newly []world.Point
	queue := []world.Point{from}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range world.OrthoNeighbors {
			n := p.Offset(d[0], d[1], d[2])
			if !t.env.Contains(n) {
				continue
			}
			idx := t.index(n)
			if t.visible[idx] {
				continue
			}
			t.visible[idx] = true
			newly = append(newly, n)
			if t.env.IsSeeThrough(n) {
				queue = append(queue, n)
			}
		}
	}
	return newly
}

func (t *GlobalFOVVisionTracker) pushVisible() {
	sz := t.env.Size()
	var pts []world.Point
	for z := 0; z < sz.Depth; z++ {
		for y := 0; y < sz.Height; y++ {
			for x := 0; x < sz.Width; x++ {
				p := world.Point{X: x, Y: y, Z: z}
				if t.visible[t.index(p)] {
					pts = append(pts, p)
				}
			}
		}
	}
	t.player.sendTerrainReveal(t.env, pts)
	t.player.sendEnvironmentObjects(t.env)
}

// ── Living LOS ─────────────────────────────────────────────────────

// LOSVisionTracker recomputes line-of-sight visibility for the tracked
// livings and sends only what newly became visible. Nothing is ever hidden
// again; the known sets only grow between recomputes in the sense that the
// diff is reveal-only.
type LOSVisionTracker struct {
	player *Player
	env    *world.Environment

	livings   []*world.LivingObject
	locations map[world.Point]struct{}
	objects   map[world.ObjectID]struct{}

	started bool
	subID   int
}

func NewLOSVisionTracker(p *Player, env *world.Environment) *LOSVisionTracker {
	return &LOSVisionTracker{
		player:    p,
		env:       env,
		locations: make(map[world.Point]struct{}),
		objects:   make(map[world.ObjectID]struct{}),
	}
}

func (t *LOSVisionTracker) Start() {
	t.subID = t.env.SubscribeTerrainChanged(t.onTerrainChanged)
	t.started = true
	t.recompute()
}

func (t *LOSVisionTracker) Stop() {
	t.env.UnsubscribeTerrainChanged(t.subID)
	t.started = false
}

func (t *LOSVisionTracker) AddLiving(l *world.LivingObject) {
	t.livings = append(t.livings, l)
	if t.started {
		t.recompute()
	}
}

func (t *LOSVisionTracker) RemoveLiving(l *world.LivingObject) {
	for i, cur := range t.livings {
		if cur == l {
			t.livings = append(t.livings[:i], t.livings[i+1:]...)
			break
		}
	}
}

func (t *LOSVisionTracker) Sees(p world.Point) bool {
	_, ok := t.locations[p]
	return ok
}

func (t *LOSVisionTracker) Resync() {
	pts := make([]world.Point, 0, len(t.locations))
	for p := range t.locations {
		pts = append(pts, p)
	}
	sortPoints(pts)
	t.player.sendTerrainReveal(t.env, pts)
	for _, id := range t.sortedObjectIDs(t.objects) {
		if obj := t.player.world.FindObject(id); obj != nil {
			t.player.sendObjectData(obj)
		}
	}
}

func (t *LOSVisionTracker) persistent() bool { return false }

func (t *LOSVisionTracker) onTerrainChanged(p world.Point, old, cur world.TileData) {
	if t.near(p) {
		t.recompute()
	}
}

// HandleObjectMoved recomputes when a move touches any tracked living's
// surroundings. Covers both foreign objects entering view and the tracked
// livings moving themselves.
func (t *LOSVisionTracker) HandleObjectMoved(pts ...world.Point) {
	for _, p := range pts {
		if t.near(p) {
			t.recompute()
			return
		}
	}
}

func (t *LOSVisionTracker) near(p world.Point) bool {
	for _, l := range t.livings {
		if l.Environment() != t.env {
			continue
		}
		if l.Location().ManhattanDistance(p) <= l.VisionRange() {
			return true
		}
	}
	return false
}

// recompute rebuilds the visible sets from scratch and pushes the
// difference against the previous generation.
func (t *LOSVisionTracker) recompute() {
	newLocs := make(map[world.Point]struct{})
	for _, l := range t.livings {
		if l.Environment() != t.env {
			continue
		}
		for _, p := range world.VisibleLocations(t.env, l.Location(), l.VisionRange()) {
			newLocs[p] = struct{}{}
		}
	}

	newObjs := make(map[world.ObjectID]struct{})
	for p := range newLocs {
		for _, m := range t.env.GetContents(p) {
			newObjs[m.ID()] = struct{}{}
		}
	}

	var revealed []world.Point
	for p := range newLocs {
		if _, ok := t.locations[p]; !ok {
			revealed = append(revealed, p)
		}
	}
	sortPoints(revealed)

	var revealedObjs []world.ObjectID
	for id := range newObjs {
		if _, ok := t.objects[id]; !ok {
			revealedObjs = append(revealedObjs, id)
		}
	}
	sort.Slice(revealedObjs, func(i, j int) bool { return revealedObjs[i] < revealedObjs[j] })

	t.locations = newLocs
	t.objects = newObjs

	if len(revealed) > 0 {
		t.player.sendTerrainReveal(t.env, revealed)
	}
	for _, id := range revealedObjs {
		if obj := t.player.world.FindObject(id); obj != nil {
			t.player.sendObjectData(obj)
		}
	}
}

func (t *LOSVisionTracker) sortedObjectIDs(set map[world.ObjectID]struct{}) []world.ObjectID {
	ids := make([]world.ObjectID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortPoints(pts []world.Point) {
	sort.Slice(pts, func(i, j int) bool {
		a, b := pts[i], pts[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}
