package handler

import (
	"fmt"

	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/world"
)

// Action kind tags in C_OPCODE_PROCEED_TURN payloads.
const (
	actionKindMove byte = 1
	actionKindMine byte = 2
	actionKindWait byte = 3
)

// HandleProceedTurn processes the player's turn reply.
// Format: [opcode][count D] then per entry [living id D][kind C][params].
// A reply with no entries is a plain "proceed" with no new actions.
func HandleProceedTurn(sess *net.Session, r *packet.Reader, deps *Deps) error {
	u := deps.Engine.UserBySession(sess.ID)
	if u == nil {
		return fmt.Errorf("proceed-turn from unbound session %d", sess.ID)
	}

	count := int(r.ReadD())
	if count < 0 || count > 64 {
		return fmt.Errorf("bad action count %d", count)
	}

	actions := make(map[world.ObjectID]world.Action, count)
	for i := 0; i < count; i++ {
		id := world.ObjectID(r.ReadD())
		kind := r.ReadC()
		act, err := readAction(kind, r, deps)
		if err != nil {
			return err
		}
		actions[id] = act
	}

	return u.HandleProceedTurn(actions)
}

func readAction(kind byte, r *packet.Reader, deps *Deps) (world.Action, error) {
	switch kind {
	case actionKindMove:
		dir := world.Direction(r.ReadC())
		if dir == world.DirNone || dir > world.DirDown {
			return nil, fmt.Errorf("bad move direction %d", dir)
		}
		return world.MoveAction{Dir: dir}, nil
	case actionKindMine:
		target := world.Point{
			X: int(int16(r.ReadH())),
			Y: int(int16(r.ReadH())),
			Z: int(int16(r.ReadH())),
		}
		return world.MineAction{Target: target}, nil
	case actionKindWait:
		turns := int(r.ReadH())
		return world.WaitAction{Turns: turns}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %d", kind)
	}
}
