package game

import (
	"fmt"

	"github.com/dwarrowdelf/server/internal/world"
)

// ChangeHandler filters the world change stream for one player and sends
// what passes. The concrete handler is picked when the player is created
// and never swapped.
type ChangeHandler interface {
	HandleWorldChange(c world.Change)
}

// AdminChangeHandler forwards every change unfiltered. Object creation
// additionally pushes the full object description, since the admin client
// never receives tracker reveals.
type AdminChangeHandler struct {
	player *Player
}

func NewAdminChangeHandler(p *Player) *AdminChangeHandler {
	return &AdminChangeHandler{player: p}
}

func (h *AdminChangeHandler) HandleWorldChange(c world.Change) {
	if cc, ok := c.(world.ObjectCreatedChange); ok {
		h.player.sendObjectData(cc.Object)
	}
	h.player.sendChange(c)
}

// PlayerChangeHandler sends a change only when CanSeeChange allows it.
type PlayerChangeHandler struct {
	player *Player

	// whether the last TurnStartChange was forwarded; the matching
	// TurnEndChange follows the same decision so the client always sees
	// balanced turn brackets
	turnStartSent bool
}

func NewPlayerChangeHandler(p *Player) *PlayerChangeHandler {
	return &PlayerChangeHandler{player: p}
}

func (h *PlayerChangeHandler) HandleWorldChange(c world.Change) {
	if !h.CanSeeChange(c) {
		return
	}
	h.revealOnEnvironmentEntry(c)
	h.player.sendChange(c)
}

// CanSeeChange decides per change kind. New kinds must be added here
// explicitly; an unknown kind is a programming error.
func (h *PlayerChangeHandler) CanSeeChange(c world.Change) bool {
	p := h.player
	switch ch := c.(type) {
	case world.TickStartChange, world.GameDateChange:
		return true

	case world.TurnStartChange:
		h.turnStartSent = ch.Living == nil || p.IsController(ch.Living)
		return h.turnStartSent

	case world.TurnEndChange:
		return h.turnStartSent

	case world.ObjectCreatedChange:
		// creation alone reveals nothing; the object becomes known when
		// it moves into sight or a tracker reveals its tile
		return false

	case world.ObjectDestructedChange:
		return true

	case world.ObjectMoveChange:
		return p.IsController(ch.Object) ||
			p.Sees(ch.Source, ch.SourceLocation) ||
			p.Sees(ch.Destination, ch.DestinationLocation)

	case world.ObjectMoveLocationChange:
		return p.IsController(ch.Object) ||
			p.Sees(ch.Object.Parent(), ch.SourceLocation) ||
			p.Sees(ch.Object.Parent(), ch.DestinationLocation)

	case world.MapChange:
		return p.Sees(ch.Environment, ch.Location)

	case world.PropertyChange:
		return h.canSeeProperty(ch)

	case world.ActionStartedChange:
		return p.IsController(ch.Living)

	case world.ActionProgressChange:
		return p.IsController(ch.Living)

	case world.ActionDoneChange:
		return p.IsController(ch.Living)

	default:
		if oc, ok := c.(world.ObjectChange); ok {
			return p.GetObjectVisibility(oc.ChangedObject()) != world.VisibilityNone
		}
		panic(fmt.Sprintf("unhandled change kind %T", c))
	}
}

// canSeeProperty applies per-property visibility. Worn and wielded state is
// special: a carried item's state shows whenever any holder up the chain is
// publicly visible, so bystanders see equipment switch hands.
func (h *PlayerChangeHandler) canSeeProperty(ch world.PropertyChange) bool {
	p := h.player
	if ch.Property == world.PropertyWornState || ch.Property == world.PropertyWieldedState {
		obj := ch.Object
		for {
			if p.GetObjectVisibility(obj) >= world.VisibilityPublic {
				return true
			}
			m, ok := obj.(world.Movable)
			if !ok {
				return false
			}
			// the walk stays inside the carried chain; reaching the
			// environment means no holder was visible
			parent, ok := m.Parent().(world.Movable)
			if !ok {
				return false
			}
			obj = parent
		}
	}
	switch p.GetObjectVisibility(ch.Object) {
	case world.VisibilityAll:
		return true
	case world.VisibilityPublic:
		return ch.Property.Visibility() == world.PropertyVisPublic
	default:
		return false
	}
}

// revealOnEnvironmentEntry pushes the full object description when an
// object enters an AllVisible or GlobalFOV environment from elsewhere.
// Those trackers reveal by terrain, not by object, so without this the
// client would get a move for an object it has never been told about.
func (h *PlayerChangeHandler) revealOnEnvironmentEntry(c world.Change) {
	ch, ok := c.(world.ObjectMoveChange)
	if !ok {
		return
	}
	dstEnv := asEnvironment(ch.Destination)
	if dstEnv == nil || asEnvironment(ch.Source) == dstEnv {
		return
	}
	switch dstEnv.VisibilityMode() {
	case world.VisibilityAllVisible, world.VisibilityGlobalFOV:
		h.player.sendObjectData(ch.Object)
	}
}
