package world

// Object is anything with a world identity.
type Object interface {
	ID() ObjectID
	Name() string
}

// Container holds movable objects.
type Container interface {
	Object
	Contents() []Movable
}

// Movable is an object that lives inside a container at a location.
type Movable interface {
	Object
	Parent() Container
	Location() Point
}

type baseObject struct {
	id    ObjectID
	world *World
	name  string
}

func (o *baseObject) ID() ObjectID { return o.id }
func (o *baseObject) Name() string { return o.name }

type containment struct {
	contents []Movable
}

func (c *containment) Contents() []Movable { return c.contents }

func (c *containment) add(m Movable) {
	c.contents = append(c.contents, m)
}

func (c *containment) remove(m Movable) {
	for i, e := range c.contents {
		if e == m {
			c.contents = append(c.contents[:i], c.contents[i+1:]...)
			return
		}
	}
}

type movableObject struct {
	baseObject
	containment
	parent   Container
	location Point
}

func (m *movableObject) Parent() Container { return m.parent }
func (m *movableObject) Location() Point   { return m.location }

// Environment returns the environment at the root of the containment chain,
// or nil if the object is outside any environment.
func environmentOf(m Movable) *Environment {
	for c := m.Parent(); c != nil; {
		switch parent := c.(type) {
		case *Environment:
			return parent
		case Movable:
			c = parent.Parent()
		default:
			return nil
		}
	}
	return nil
}

// ItemObject is a movable item. Items can themselves hold contents
// (a barrel, a bag) and can be worn or wielded by a living.
type ItemObject struct {
	movableObject
	Worn    bool
	Wielded bool
}

func (it *ItemObject) Environment() *Environment { return environmentOf(it) }

// LivingObject is a controllable creature.
type LivingObject struct {
	movableObject

	visionRange int

	// ControllerID is the player allowed to issue actions for this living,
	// or PlayerIDInvalid for an uncontrolled creature.
	ControllerID PlayerID

	queuedAction    Action
	currentAction   Action
	actionTicksLeft int
}

func (l *LivingObject) VisionRange() int { return l.visionRange }

func (l *LivingObject) Environment() *Environment { return environmentOf(l) }

// CurrentAction returns the action in progress, or nil.
func (l *LivingObject) CurrentAction() Action { return l.currentAction }

// QueuedAction returns the action waiting for the next turn, or nil.
func (l *LivingObject) QueuedAction() Action { return l.queuedAction }

// EnqueueAction queues an action for this living's next turn, replacing any
// previously queued one. A nil action means "do nothing".
func (l *LivingObject) EnqueueAction(a Action) {
	l.queuedAction = a
}
