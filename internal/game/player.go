package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/world"
)

// Player is the persistent per-account seat in the game. It survives
// disconnects; a User comes and goes with the network session. The player
// observes every world change, keeps its vision trackers current and runs
// the change stream through its ChangeHandler filter.
type Player struct {
	engine *Engine
	world  *world.World
	log    *zap.Logger

	id      world.PlayerID
	account string
	admin   bool

	user *User

	controllables []*world.LivingObject
	// environment each controllable currently occupies; needed because a
	// destructed object is already detached when the change is observed
	controllableEnvs map[world.ObjectID]*world.Environment
	handler          ChangeHandler

	// vision trackers by environment, refcounted by controllables present
	trackers    map[world.ObjectID]VisionTracker
	trackerRefs map[world.ObjectID]int

	proceedTurnReceived bool
}

func NewPlayer(e *Engine, id world.PlayerID, account string, admin bool) *Player {
	if id < world.PlayerIDFirst {
		panic(fmt.Sprintf("player id %d below first valid id", id))
	}
	p := &Player{
		engine:           e,
		world:            e.world,
		log:              e.log.Named("player").With(zap.Uint32("player", uint32(id))),
		id:               id,
		account:          account,
		admin:            admin,
		controllableEnvs: make(map[world.ObjectID]*world.Environment),
		trackers:         make(map[world.ObjectID]VisionTracker),
		trackerRefs:      make(map[world.ObjectID]int),
	}
	if admin {
		p.handler = NewAdminChangeHandler(p)
	} else {
		p.handler = NewPlayerChangeHandler(p)
	}
	for _, env := range p.world.Environments() {
		p.ensurePersistentTracker(env)
	}
	return p
}

// ensurePersistentTracker gives the player a running tracker for an
// AllVisible environment whether or not a controllable is inside: Sees
// answers true for every location there, so its terrain must have been
// pushed. Admins are covered by the full dump on connect.
func (p *Player) ensurePersistentTracker(env *world.Environment) {
	if p.admin || env.VisibilityMode() != world.VisibilityAllVisible {
		return
	}
	if p.trackers[env.ID()] != nil {
		return
	}
	p.sendMapData(env)
	tr := p.newTracker(env)
	p.trackers[env.ID()] = tr
	tr.Start()
}

func (p *Player) ID() world.PlayerID { return p.id }
func (p *Player) Account() string    { return p.account }
func (p *Player) IsAdmin() bool      { return p.admin }
func (p *Player) IsConnected() bool  { return p.user != nil }
func (p *Player) User() *User        { return p.user }

func (p *Player) Controllables() []*world.LivingObject { return p.controllables }

// ConnectUser binds a fresh session to the player and replays the current
// game state to it: world data, maps, controllables and everything the
// vision trackers consider visible.
func (p *Player) ConnectUser(u *User) {
	if p.user != nil {
		panic("player already has a user")
	}
	p.user = u

	p.sendWorldData()
	for _, env := range p.world.Environments() {
		p.sendMapData(env)
	}
	if p.admin {
		for _, env := range p.world.Environments() {
			p.sendFullTerrain(env)
			p.sendEnvironmentObjects(env)
		}
	} else {
		for _, tr := range p.trackers {
			tr.Resync()
		}
	}
	p.sendControllables(p.controllables)
}

func (p *Player) DisconnectUser() {
	p.user = nil
}

// Send delivers a raw packet to the bound user, if any. Silently dropped
// while disconnected.
func (p *Player) Send(data []byte) {
	if p.user != nil {
		p.user.Send(data)
	}
}

// ── Controllables ──────────────────────────────────────────────────

func (p *Player) AddControllable(l *world.LivingObject) {
	p.controllables = append(p.controllables, l)
	if env := l.Environment(); env != nil {
		p.controllableEnvs[l.ID()] = env
		p.acquireVision(env, l)
	}
	p.sendControllables([]*world.LivingObject{l})
}

func (p *Player) RemoveControllable(l *world.LivingObject) {
	for i, cur := range p.controllables {
		if cur == l {
			p.controllables = append(p.controllables[:i], p.controllables[i+1:]...)
			if env := p.controllableEnvs[l.ID()]; env != nil {
				delete(p.controllableEnvs, l.ID())
				p.releaseVision(env, l)
			}
			return
		}
	}
}

func (p *Player) hasControllable(l *world.LivingObject) bool {
	for _, cur := range p.controllables {
		if cur == l {
			return true
		}
	}
	return false
}

// IsController reports whether obj is one of the player's controllables or
// is contained, at any depth, inside one.
func (p *Player) IsController(obj world.Object) bool {
	for {
		if l, ok := obj.(*world.LivingObject); ok && l.ControllerID == p.id {
			return true
		}
		m, ok := obj.(world.Movable)
		if !ok {
			return false
		}
		parent := m.Parent()
		if parent == nil {
			return false
		}
		obj = parent
	}
}

// ── Visibility queries ─────────────────────────────────────────────

// Sees reports whether the player sees the given location of the given
// container. For an environment the active vision tracker decides; for a
// movable container the contents are visible only to the controller.
func (p *Player) Sees(c world.Container, loc world.Point) bool {
	if c == nil {
		return false
	}
	if env, ok := c.(*world.Environment); ok {
		if p.admin {
			return theAdminVisionTracker.Sees(loc)
		}
		if env.VisibilityMode() == world.VisibilityAllVisible {
			return env.Contains(loc)
		}
		tr := p.trackers[env.ID()]
		if tr == nil {
			return false
		}
		return tr.Sees(loc)
	}
	return p.IsController(c)
}

// GetObjectVisibility classifies how much of obj the player may know about.
func (p *Player) GetObjectVisibility(obj world.Object) world.ObjectVisibility {
	if _, ok := obj.(*world.Environment); ok {
		return world.VisibilityAll
	}
	if p.IsController(obj) {
		return world.VisibilityAll
	}
	if m, ok := obj.(world.Movable); ok {
		if p.Sees(m.Parent(), m.Location()) {
			return world.VisibilityPublic
		}
	}
	return world.VisibilityNone
}

// ── Vision tracker bookkeeping ─────────────────────────────────────

func (p *Player) newTracker(env *world.Environment) VisionTracker {
	switch env.VisibilityMode() {
	case world.VisibilityAllVisible:
		return NewAllVisibleVisionTracker(p, env)
	case world.VisibilityGlobalFOV:
		return NewGlobalFOVVisionTracker(p, env)
	case world.VisibilityLivingLOS:
		return NewLOSVisionTracker(p, env)
	default:
		panic(fmt.Sprintf("unhandled visibility mode %v", env.VisibilityMode()))
	}
}

func (p *Player) acquireVision(env *world.Environment, l *world.LivingObject) {
	if p.admin {
		p.trackers[env.ID()] = theAdminVisionTracker
		p.trackerRefs[env.ID()]++
		return
	}
	tr := p.trackers[env.ID()]
	if tr == nil {
		tr = p.newTracker(env)
		p.trackers[env.ID()] = tr
		tr.AddLiving(l)
		tr.Start()
	} else {
		tr.AddLiving(l)
	}
	p.trackerRefs[env.ID()]++
}

func (p *Player) releaseVision(env *world.Environment, l *world.LivingObject) {
	tr := p.trackers[env.ID()]
	if tr == nil || p.trackerRefs[env.ID()] <= 0 {
		panic(fmt.Sprintf("vision refcount underflow for env %d", env.ID()))
	}
	tr.RemoveLiving(l)
	p.trackerRefs[env.ID()]--
	if p.trackerRefs[env.ID()] == 0 && !tr.persistent() {
		tr.Stop()
		delete(p.trackers, env.ID())
		delete(p.trackerRefs, env.ID())
	}
}

// ── Change stream ──────────────────────────────────────────────────

// HandleWorldChange does the player's own bookkeeping on the raw change
// stream, then hands the change to the ChangeHandler for filtering and
// delivery. Bookkeeping runs first so visibility queries made while
// filtering see the post-change state.
func (p *Player) HandleWorldChange(c world.Change) {
	switch ch := c.(type) {
	case world.ObjectCreatedChange:
		if env, ok := ch.Object.(*world.Environment); ok {
			p.ensurePersistentTracker(env)
		}

	case world.ObjectMoveChange:
		p.trackControllableEnvSwitch(ch)
		p.notifyMovement(ch.Source, ch.SourceLocation)
		p.notifyMovement(ch.Destination, ch.DestinationLocation)

	case world.ObjectMoveLocationChange:
		p.notifyMovement(ch.Object.Parent(), ch.SourceLocation)
		p.notifyMovement(ch.Object.Parent(), ch.DestinationLocation)

	case world.ObjectDestructedChange:
		if l, ok := ch.Object.(*world.LivingObject); ok && p.hasControllable(l) {
			p.RemoveControllable(l)
		}

	case world.TurnEndChange:
		p.proceedTurnReceived = false
	}

	p.handler.HandleWorldChange(c)
}

func (p *Player) trackControllableEnvSwitch(ch world.ObjectMoveChange) {
	l, ok := ch.Object.(*world.LivingObject)
	if !ok || !p.hasControllable(l) {
		return
	}
	srcEnv := asEnvironment(ch.Source)
	dstEnv := asEnvironment(ch.Destination)
	if srcEnv == dstEnv {
		return
	}
	if srcEnv != nil {
		delete(p.controllableEnvs, l.ID())
		p.releaseVision(srcEnv, l)
	}
	if dstEnv != nil {
		p.controllableEnvs[l.ID()] = dstEnv
		p.acquireVision(dstEnv, l)
	}
}

func (p *Player) notifyMovement(c world.Container, loc world.Point) {
	env := asEnvironment(c)
	if env == nil {
		return
	}
	if mo, ok := p.trackers[env.ID()].(movementObserver); ok {
		mo.HandleObjectMoved(loc)
	}
}

func asEnvironment(c world.Container) *world.Environment {
	env, _ := c.(*world.Environment)
	return env
}

// ── Turn input ─────────────────────────────────────────────────────

// receiveProceedTurn queues the submitted actions and marks the player's
// turn reply. An action for a living the player does not control is a
// protocol violation; a duplicate reply within one turn is tolerated.
func (p *Player) receiveProceedTurn(actions map[world.ObjectID]world.Action) error {
	// validate the whole batch before touching any living, so a rejected
	// reply leaves no partial state behind
	resolved := make(map[*world.LivingObject]world.Action, len(actions))
	for id, act := range actions {
		l := p.world.FindLiving(id)
		if l == nil || !p.hasControllable(l) {
			return fmt.Errorf("action for living %d not controlled by player %d", id, p.id)
		}
		resolved[l] = act
	}
	for l, act := range resolved {
		l.EnqueueAction(act)
	}
	if p.proceedTurnReceived {
		p.log.Warn("duplicate proceed-turn reply ignored")
		return nil
	}
	p.proceedTurnReceived = true
	p.engine.onPlayerProceedTurn(p)
	return nil
}
