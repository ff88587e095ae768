package handler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
)

// HandleLogOut processes C_OPCODE_LOGOUT. The player stays in the world.
func HandleLogOut(sess *net.Session, r *packet.Reader, deps *Deps) error {
	u := deps.Engine.UserBySession(sess.ID)
	if u == nil {
		return fmt.Errorf("logout from unbound session %d", sess.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := deps.PlayerRepo.TouchLastSeen(ctx, int32(u.Player().ID())); err != nil {
		deps.Log.Error("touch last seen failed", zap.Error(err))
	}

	u.HandleLogOut()
	return nil
}

// HandleWorldConfig processes C_OPCODE_WORLD_CONFIG.
// Format: [opcode][min tick time ms D]. Negative means leave unchanged.
func HandleWorldConfig(sess *net.Session, r *packet.Reader, deps *Deps) error {
	u := deps.Engine.UserBySession(sess.ID)
	if u == nil {
		return fmt.Errorf("world-config from unbound session %d", sess.ID)
	}

	minTickMs := r.ReadD()
	if minTickMs >= 0 {
		u.HandleSetWorldConfig(time.Duration(minTickMs) * time.Millisecond)
	}
	return nil
}

// HandleSave processes C_OPCODE_SAVE.
// Format: [opcode][label\0]
func HandleSave(sess *net.Session, r *packet.Reader, deps *Deps) error {
	u := deps.Engine.UserBySession(sess.ID)
	if u == nil {
		return fmt.Errorf("save from unbound session %d", sess.ID)
	}
	label := r.ReadS()
	if label == "" {
		label = "autosave"
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	w := deps.Engine.World()
	playerID := int32(u.Player().ID())
	err := deps.SaveRepo.Insert(ctx, label, int32(w.Tick()), w.Date(), &playerID)
	if err != nil {
		deps.Log.Error("save failed", zap.Error(err), zap.String("label", label))
	}

	reply := packet.NewWriterWithOpcode(packet.S_OPCODE_SAVE_REPLY)
	reply.WriteBool(err == nil)
	reply.WriteS(label)
	sess.Send(reply.Bytes())
	return nil
}

// HandleScript processes C_OPCODE_SCRIPT, the admin lua console.
// Format: [opcode][source\0]
func HandleScript(sess *net.Session, r *packet.Reader, deps *Deps) error {
	u := deps.Engine.UserBySession(sess.ID)
	if u == nil {
		return fmt.Errorf("script from unbound session %d", sess.ID)
	}
	if !u.Player().IsAdmin() {
		return fmt.Errorf("script console used by non-admin player %d", u.Player().ID())
	}

	src := r.ReadS()
	out, err := deps.Scripting.Eval(src)
	if err != nil {
		out += "error: " + err.Error() + "\n"
	}

	reply := packet.NewWriterWithOpcode(packet.S_OPCODE_SCRIPT_OUTPUT)
	reply.WriteS(out)
	sess.Send(reply.Bytes())
	return nil
}
