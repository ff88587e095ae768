package world

// Change is an immutable description of one world mutation. The set of
// variants is closed: every consumer must handle each kind explicitly and
// treat an unknown kind as a programming error.
type Change interface {
	changeMarker()
}

// ObjectChange is implemented by changes scoped to a single object. It lets
// consumers apply a catch-all visibility rule to object-scoped kinds they do
// not special-case.
type ObjectChange interface {
	Change
	ChangedObject() Object
}

// ObjectCreatedChange: a new object entered the world. Not directly shown to
// players; objects are revealed through movement and vision instead.
type ObjectCreatedChange struct {
	Object Object
}

// ObjectDestructedChange: an object left the world for good.
type ObjectDestructedChange struct {
	Object Object
}

// ObjectMoveChange: an object changed container.
type ObjectMoveChange struct {
	Object              Movable
	Source              Container // nil when entering the world
	SourceLocation      Point
	Destination         Container
	DestinationLocation Point
}

// ObjectMoveLocationChange: an object moved within the same container.
type ObjectMoveLocationChange struct {
	Object              Movable
	SourceLocation      Point
	DestinationLocation Point
}

// MapChange: terrain or interior mutated at one location.
type MapChange struct {
	Environment *Environment
	Location    Point
	OldTile     TileData
	NewTile     TileData
}

// PropertyChange: a named property of an object changed value.
type PropertyChange struct {
	Object   Object
	Property PropertyID
	Value    any
}

// ActionStartedChange: a living began an action.
type ActionStartedChange struct {
	Living *LivingObject
	Action Action
}

// ActionProgressChange: a living's action advanced without completing.
type ActionProgressChange struct {
	Living    *LivingObject
	TicksLeft int
}

// ActionDoneChange: a living's action completed.
type ActionDoneChange struct {
	Living *LivingObject
	State  ActionState
}

// TurnStartChange: a turn began. Living is nil for a simultaneous
// (all-livings) turn.
type TurnStartChange struct {
	Living *LivingObject
}

// TurnEndChange: the matching turn ended.
type TurnEndChange struct {
	Living *LivingObject
}

// TickStartChange: a new tick began.
type TickStartChange struct {
	Tick int
}

// GameDateChange: the world date advanced.
type GameDateChange struct {
	Date int64
}

func (ObjectCreatedChange) changeMarker()      {}
func (ObjectDestructedChange) changeMarker()   {}
func (ObjectMoveChange) changeMarker()         {}
func (ObjectMoveLocationChange) changeMarker() {}
func (MapChange) changeMarker()                {}
func (PropertyChange) changeMarker()           {}
func (ActionStartedChange) changeMarker()      {}
func (ActionProgressChange) changeMarker()     {}
func (ActionDoneChange) changeMarker()         {}
func (TurnStartChange) changeMarker()          {}
func (TurnEndChange) changeMarker()            {}
func (TickStartChange) changeMarker()          {}
func (GameDateChange) changeMarker()           {}

func (c ObjectCreatedChange) ChangedObject() Object      { return c.Object }
func (c ObjectDestructedChange) ChangedObject() Object   { return c.Object }
func (c ObjectMoveChange) ChangedObject() Object         { return c.Object }
func (c ObjectMoveLocationChange) ChangedObject() Object { return c.Object }
func (c PropertyChange) ChangedObject() Object           { return c.Object }
