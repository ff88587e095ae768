package handler

import (
	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/config"
	"github.com/dwarrowdelf/server/internal/game"
	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/persist"
	"github.com/dwarrowdelf/server/internal/scripting"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Engine      *game.Engine
	Config      *config.Config
	Log         *zap.Logger
	AccountRepo *persist.AccountRepo
	PlayerRepo  *persist.PlayerRepo
	SaveRepo    *persist.SaveRepo
	Scripting   *scripting.Engine
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_OPCODE_LOGIN,
		[]packet.SessionState{packet.StateGreeting},
		func(sess any, r *packet.Reader) error {
			return HandleLogOn(sess.(*net.Session), r, deps)
		},
	)

	inGame := []packet.SessionState{packet.StateInGame}

	reg.Register(packet.C_OPCODE_LOGOUT, inGame,
		func(sess any, r *packet.Reader) error {
			return HandleLogOut(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_PROCEED_TURN, inGame,
		func(sess any, r *packet.Reader) error {
			return HandleProceedTurn(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_WORLD_CONFIG, inGame,
		func(sess any, r *packet.Reader) error {
			return HandleWorldConfig(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SAVE, inGame,
		func(sess any, r *packet.Reader) error {
			return HandleSave(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SCRIPT, inGame,
		func(sess any, r *packet.Reader) error {
			return HandleScript(sess.(*net.Session), r, deps)
		},
	)
}
