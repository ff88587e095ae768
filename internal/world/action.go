package world

// Action is one unit of intent a living carries out over one or more ticks.
type Action interface {
	// TotalTicks is how many turns the action takes to complete.
	TotalTicks() int
}

// ActionState is the terminal state of a finished action.
type ActionState byte

const (
	ActionStateDone ActionState = iota
	ActionStateFailed
	ActionStateAborted
)

// MoveAction steps one tile in a direction.
type MoveAction struct {
	Dir Direction
}

func (MoveAction) TotalTicks() int { return 1 }

// MineAction digs out an adjacent wall tile, replacing it with the
// environment's mined tile material.
type MineAction struct {
	Target Point
}

func (MineAction) TotalTicks() int { return 2 }

// WaitAction idles for a number of turns.
type WaitAction struct {
	Turns int
}

func (a WaitAction) TotalTicks() int {
	if a.Turns < 1 {
		return 1
	}
	return a.Turns
}
