package game

import (
	"time"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/world"
)

// User is the transient binding between a network session and a Player.
// It exists from successful login until disconnect; the Player outlives it.
type User struct {
	engine *Engine
	sess   *net.Session
	player *Player
	log    *zap.Logger

	// send delivers one outbound packet; indirected so tests can capture
	// traffic without a real session
	send func(data []byte)
}

func NewUser(e *Engine, sess *net.Session, p *Player) *User {
	u := &User{
		engine: e,
		sess:   sess,
		player: p,
		log:    e.log.Named("user").With(zap.Uint32("player", uint32(p.ID()))),
	}
	if sess != nil {
		u.send = sess.Send
	}
	return u
}

func (u *User) Player() *Player       { return u.player }
func (u *User) Session() *net.Session { return u.sess }

func (u *User) Send(data []byte) {
	if u.send != nil {
		u.send(data)
	}
}

// HandleProceedTurn applies the player's turn reply. A reply naming a
// living the player does not control is a protocol violation and the
// caller drops the connection.
func (u *User) HandleProceedTurn(actions map[world.ObjectID]world.Action) error {
	u.engine.disp.VerifyAccess()
	return u.player.receiveProceedTurn(actions)
}

// HandleSetWorldConfig adjusts runtime tunables. Zero disables the
// minimum tick delay.
func (u *User) HandleSetWorldConfig(minTickTime time.Duration) {
	u.engine.disp.VerifyAccess()
	u.engine.SetMinTickTime(minTickTime)
}

// HandleLogOut detaches the user gracefully. The player stays in the game
// world and can be rebound by a later login.
func (u *User) HandleLogOut() {
	u.engine.disp.VerifyAccess()
	u.Send(buildLogOutReply())
	u.engine.dropUser(u, nil)
}
