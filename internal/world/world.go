package world

import (
	"fmt"
	"sort"

	"github.com/dwarrowdelf/server/internal/data"
	"go.uber.org/zap"
)

// ChangeObserver receives every world change, in emission order.
type ChangeObserver interface {
	HandleWorldChange(Change)
}

type worldPhase int

const (
	phaseTickWait worldPhase = iota // waiting for SetOkToStartTick
	phaseTurnWait                   // turn announced, waiting for SetProceedTurn
)

// World is the shared simulation state. It is exclusively owned by the
// engine goroutine; nothing here is safe for concurrent use.
//
// The engine drives it through Work(): each call advances the simulation by
// at most one step and reports whether it did anything. Progress is gated by
// two flags the engine raises: SetOkToStartTick (tick may begin) and
// SetProceedTurn (the pending turn may be carried out).
type World struct {
	log  *zap.Logger
	mode TurnMode

	tick int
	date int64

	phase         worldPhase
	okToStartTick bool
	proceedTurn   bool

	environments []*Environment
	objects      map[ObjectID]Object
	livings      []*LivingObject
	nextID       ObjectID

	// turnOrder is the snapshot of livings taking turns this tick, sorted
	// by object ID so simultaneous turns resolve deterministically.
	turnOrder  []*LivingObject
	turnIdx    int
	turnLiving *LivingObject

	observers []ChangeObserver

	tickStarted  []func()
	tickEnded    []func()
	turnStarting []func(*LivingObject)
	turnEnded    []func(*LivingObject)
}

func NewWorld(mode TurnMode, log *zap.Logger) *World {
	return &World{
		log:     log,
		mode:    mode,
		objects: make(map[ObjectID]Object),
	}
}

// Restore resumes the clock from a saved point. Call before the first Work.
func (w *World) Restore(tick int, date int64) {
	w.tick = tick
	w.date = date
}

func (w *World) Tick() int      { return w.tick }
func (w *World) Date() int64    { return w.date }
func (w *World) Mode() TurnMode { return w.mode }

func (w *World) Environments() []*Environment { return w.environments }

func (w *World) FindObject(id ObjectID) Object { return w.objects[id] }

// FindLiving returns the living with the given ID, or nil.
func (w *World) FindLiving(id ObjectID) *LivingObject {
	l, _ := w.objects[id].(*LivingObject)
	return l
}

// ── Event subscription ─────────────────────────────────────────────

// AddChangeObserver subscribes an observer to the change stream. Observers
// are notified in subscription order for every change.
func (w *World) AddChangeObserver(o ChangeObserver) {
	w.observers = append(w.observers, o)
}

func (w *World) RemoveChangeObserver(o ChangeObserver) {
	for i, v := range w.observers {
		if v == o {
			w.observers = append(w.observers[:i], w.observers[i+1:]...)
			return
		}
	}
}

func (w *World) OnTickStarted(fn func())              { w.tickStarted = append(w.tickStarted, fn) }
func (w *World) OnTickEnded(fn func())                { w.tickEnded = append(w.tickEnded, fn) }
func (w *World) OnTurnStarting(fn func(*LivingObject)) { w.turnStarting = append(w.turnStarting, fn) }
func (w *World) OnTurnEnded(fn func(*LivingObject))    { w.turnEnded = append(w.turnEnded, fn) }

// emit fans one change out to every observer, preserving emission order.
func (w *World) emit(c Change) {
	// Copy: an observer may add or remove observers while handling.
	obs := make([]ChangeObserver, len(w.observers))
	copy(obs, w.observers)
	for _, o := range obs {
		o.HandleWorldChange(c)
	}
}

// ── Tick/turn state machine ────────────────────────────────────────

// IsTickWaiting reports whether the world is idle between ticks.
func (w *World) IsTickWaiting() bool { return w.phase == phaseTickWait }

// HasPendingTurn reports whether a turn is waiting on SetProceedTurn.
func (w *World) HasPendingTurn() bool { return w.phase == phaseTurnWait && !w.proceedTurn }

// TurnLiving returns the living whose turn is pending, or nil for a
// simultaneous turn (or when no turn is pending).
func (w *World) TurnLiving() *LivingObject { return w.turnLiving }

// SetOkToStartTick allows the next tick to begin. Idempotent.
func (w *World) SetOkToStartTick() { w.okToStartTick = true }

// SetProceedTurn allows the pending turn to be carried out. Idempotent.
func (w *World) SetProceedTurn() { w.proceedTurn = true }

// Work advances the simulation by one step if the gates allow it. Returns
// whether anything was done; the engine loop blocks when every work source
// reports false.
func (w *World) Work() bool {
	switch w.phase {
	case phaseTickWait:
		if !w.okToStartTick {
			return false
		}
		w.okToStartTick = false
		w.startTick()
		return true

	case phaseTurnWait:
		if !w.proceedTurn {
			return false
		}
		w.proceedTurn = false
		w.performTurn()
		return true

	default:
		panic(fmt.Sprintf("world: invalid phase %d", int(w.phase)))
	}
}

func (w *World) startTick() {
	w.tick++
	w.date++

	w.turnOrder = append(w.turnOrder[:0], w.livings...)
	sort.Slice(w.turnOrder, func(i, j int) bool {
		return w.turnOrder[i].ID() < w.turnOrder[j].ID()
	})
	w.turnIdx = 0

	w.emit(TickStartChange{Tick: w.tick})
	w.emit(GameDateChange{Date: w.date})
	for _, fn := range w.tickStarted {
		fn()
	}

	w.startTurn()
}

func (w *World) startTurn() {
	if w.mode == TurnModeSequential && w.turnIdx < len(w.turnOrder) {
		w.turnLiving = w.turnOrder[w.turnIdx]
	} else {
		w.turnLiving = nil
	}
	w.phase = phaseTurnWait
	w.emit(TurnStartChange{Living: w.turnLiving})
	for _, fn := range w.turnStarting {
		fn(w.turnLiving)
	}
}

func (w *World) performTurn() {
	living := w.turnLiving

	switch w.mode {
	case TurnModeSimultaneous:
		for _, l := range w.turnOrder {
			w.performLivingTurn(l)
		}
	case TurnModeSequential:
		if living != nil {
			w.performLivingTurn(living)
		}
	}

	w.emit(TurnEndChange{Living: living})
	for _, fn := range w.turnEnded {
		fn(living)
	}

	if w.mode == TurnModeSequential {
		w.turnIdx++
		if w.turnIdx < len(w.turnOrder) {
			w.startTurn()
			return
		}
	}
	w.endTick()
}

func (w *World) endTick() {
	w.phase = phaseTickWait
	w.turnLiving = nil
	for _, fn := range w.tickEnded {
		fn()
	}
}

// performLivingTurn runs one turn's worth of the living's action.
func (w *World) performLivingTurn(l *LivingObject) {
	if l.currentAction == nil {
		if l.queuedAction == nil {
			return
		}
		l.currentAction = l.queuedAction
		l.queuedAction = nil
		l.actionTicksLeft = l.currentAction.TotalTicks()
		w.emit(ActionStartedChange{Living: l, Action: l.currentAction})
	}

	l.actionTicksLeft--
	if l.actionTicksLeft > 0 {
		w.emit(ActionProgressChange{Living: l, TicksLeft: l.actionTicksLeft})
		return
	}

	state := w.performAction(l, l.currentAction)
	l.currentAction = nil
	w.emit(ActionDoneChange{Living: l, State: state})
}

func (w *World) performAction(l *LivingObject, a Action) ActionState {
	switch act := a.(type) {
	case MoveAction:
		env := l.Environment()
		if env == nil {
			return ActionStateFailed
		}
		dx, dy, dz := act.Dir.Delta()
		dst := l.Location().Offset(dx, dy, dz)
		if !env.IsWalkable(dst) {
			return ActionStateFailed
		}
		w.MoveObject(l, env, dst)
		return ActionStateDone

	case MineAction:
		env := l.Environment()
		if env == nil || !env.Contains(act.Target) {
			return ActionStateFailed
		}
		if l.Location().ManhattanDistance(act.Target) > 1 {
			return ActionStateFailed
		}
		if env.IsSeeThrough(act.Target) {
			return ActionStateFailed // nothing to dig
		}
		env.SetTileData(act.Target, env.MinedTile)
		return ActionStateDone

	case WaitAction:
		return ActionStateDone

	default:
		panic(fmt.Sprintf("world: unknown action %T", a))
	}
}

// ── Object creation and mutation ───────────────────────────────────

func (w *World) allocID() ObjectID {
	w.nextID++
	return w.nextID
}

// CreateEnvironment builds an environment whose tiles are produced by fill.
func (w *World) CreateEnvironment(name string, size Size, mode VisibilityMode, terrains *data.TerrainTable, fill func(Point) TileData) *Environment {
	e := &Environment{
		baseObject: baseObject{id: w.allocID(), world: w, name: name},
		size:       size,
		visibility: mode,
		terrains:   terrains,
		tiles:      make([]TileData, size.Volume()),
		contents:   make(map[Point][]Movable),
		terrainSub: make(map[int]TerrainChangedHandler),
	}
	if fill != nil {
		for z := 0; z < size.Depth; z++ {
			for y := 0; y < size.Height; y++ {
				for x := 0; x < size.Width; x++ {
					p := Point{x, y, z}
					e.tiles[e.tileIndex(p)] = fill(p)
				}
			}
		}
	}
	w.environments = append(w.environments, e)
	w.objects[e.id] = e
	w.emit(ObjectCreatedChange{Object: e})
	return e
}

// CreateItem creates an item inside the given container at loc.
func (w *World) CreateItem(name string, parent Container, loc Point) *ItemObject {
	it := &ItemObject{
		movableObject: movableObject{
			baseObject: baseObject{id: w.allocID(), world: w, name: name},
		},
	}
	w.objects[it.id] = it
	w.emit(ObjectCreatedChange{Object: it})
	w.place(it, parent, loc)
	return it
}

// CreateLiving creates a living inside env at loc.
func (w *World) CreateLiving(name string, env *Environment, loc Point, visionRange int, controller PlayerID) *LivingObject {
	l := &LivingObject{
		movableObject: movableObject{
			baseObject: baseObject{id: w.allocID(), world: w, name: name},
		},
		visionRange:  visionRange,
		ControllerID: controller,
	}
	w.objects[l.id] = l
	w.livings = append(w.livings, l)
	w.emit(ObjectCreatedChange{Object: l})
	w.place(l, env, loc)
	return l
}

// place performs the initial insertion of a fresh object into a container.
// It emits an ObjectMoveChange with a nil source so observers can treat it
// as the object entering the world.
func (w *World) place(m Movable, parent Container, loc Point) {
	w.attach(m, parent, loc)
	w.emit(ObjectMoveChange{
		Object:              m,
		Source:              nil,
		Destination:         parent,
		DestinationLocation: loc,
	})
}

// MoveObject moves m to a (possibly different) container and location.
func (w *World) MoveObject(m Movable, dest Container, loc Point) {
	src := m.Parent()
	srcLoc := m.Location()
	if src == dest {
		if srcLoc == loc {
			return
		}
		w.detach(m)
		w.attach(m, dest, loc)
		w.emit(ObjectMoveLocationChange{
			Object:              m,
			SourceLocation:      srcLoc,
			DestinationLocation: loc,
		})
		return
	}

	w.detach(m)
	w.attach(m, dest, loc)
	w.emit(ObjectMoveChange{
		Object:              m,
		Source:              src,
		SourceLocation:      srcLoc,
		Destination:         dest,
		DestinationLocation: loc,
	})
}

// DestructObject removes an object from the world permanently.
func (w *World) DestructObject(m Movable) {
	w.detach(m)
	delete(w.objects, m.ID())
	if l, ok := m.(*LivingObject); ok {
		for i, v := range w.livings {
			if v == l {
				w.livings = append(w.livings[:i], w.livings[i+1:]...)
				break
			}
		}
	}
	w.emit(ObjectDestructedChange{Object: m})
}

// SetProperty changes a named property of an object and emits the change.
func (w *World) SetProperty(obj Object, prop PropertyID, value any) {
	switch o := obj.(type) {
	case *ItemObject:
		switch prop {
		case PropertyWornState:
			o.Worn, _ = value.(bool)
		case PropertyWieldedState:
			o.Wielded, _ = value.(bool)
		}
	}
	w.emit(PropertyChange{Object: obj, Property: prop, Value: value})
}

func (w *World) attach(m Movable, parent Container, loc Point) {
	mo := movableBase(m)
	mo.parent = parent
	mo.location = loc
	switch p := parent.(type) {
	case *Environment:
		p.addContent(m, loc)
	case *ItemObject:
		p.containment.add(m)
	case *LivingObject:
		p.containment.add(m)
	case nil:
	default:
		panic(fmt.Sprintf("world: unknown container type %T", parent))
	}
}

func (w *World) detach(m Movable) {
	mo := movableBase(m)
	switch p := mo.parent.(type) {
	case *Environment:
		p.removeContent(m, mo.location)
	case *ItemObject:
		p.containment.remove(m)
	case *LivingObject:
		p.containment.remove(m)
	case nil:
	default:
		panic(fmt.Sprintf("world: unknown container type %T", mo.parent))
	}
	mo.parent = nil
}

func movableBase(m Movable) *movableObject {
	switch o := m.(type) {
	case *ItemObject:
		return &o.movableObject
	case *LivingObject:
		return &o.movableObject
	default:
		panic(fmt.Sprintf("world: unknown movable type %T", m))
	}
}
