package game

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/config"
	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/world"
)

// Engine owns the game loop. It drains network input, advances the world
// simulation and flushes output, all on the dispatcher goroutine. All
// exported methods except Run, Shutdown and Dispatcher must be called from
// that goroutine.
type Engine struct {
	cfg  *config.Config
	log  *zap.Logger
	disp *Dispatcher

	world    *world.World
	server   *net.Server      // nil in tests
	registry *packet.Registry // nil until SetRegistry

	sessions map[uint64]*net.Session
	users    map[uint64]*User // keyed by session ID

	players          map[world.PlayerID]*Player
	playersByAccount map[string]*Player
	nextPlayerID     world.PlayerID

	// tick pacing
	minTickTime   time.Duration
	minTickPassed bool

	// turn timeout
	maxMoveTime time.Duration
	// increments every turn start; timer callbacks capture the value and
	// become no-ops when a newer turn has begun
	turnSeq      uint64
	maxMoveTimer *time.Timer
}

func NewEngine(cfg *config.Config, w *world.World, server *net.Server, log *zap.Logger) *Engine {
	e := &Engine{
		cfg:              cfg,
		log:              log.Named("engine"),
		disp:             NewDispatcher(log.Named("dispatcher")),
		world:            w,
		server:           server,
		sessions:         make(map[uint64]*net.Session),
		users:            make(map[uint64]*User),
		players:          make(map[world.PlayerID]*Player),
		playersByAccount: make(map[string]*Player),
		nextPlayerID:     world.PlayerIDFirst,
		minTickTime:      cfg.Game.MinTickTime,
		minTickPassed:    true,
		maxMoveTime:      cfg.Game.MaxMoveTime,
	}
	w.OnTickEnded(e.onTickEnded)
	w.OnTurnStarting(e.onTurnStarting)
	w.OnTurnEnded(e.onTurnEnded)
	return e
}

func (e *Engine) Dispatcher() *Dispatcher { return e.disp }
func (e *Engine) World() *world.World     { return e.world }

// SetRegistry installs the packet dispatch table. Handlers reference the
// engine, so the registry is built after it.
func (e *Engine) SetRegistry(reg *packet.Registry) { e.registry = reg }

// SetNextPlayerID seeds the player ID allocator, typically from the highest
// persisted ID. IDs below the first valid player ID are ignored.
func (e *Engine) SetNextPlayerID(id world.PlayerID) {
	if id > e.nextPlayerID {
		e.nextPlayerID = id
	}
}

// Run executes the game loop on the calling goroutine until Shutdown.
func (e *Engine) Run() {
	e.log.Info("game loop starting",
		zap.String("turn_mode", turnModeName(e.world.Mode())),
		zap.Duration("min_tick_time", e.minTickTime),
	)
	e.disp.Run(e.work)
	e.log.Info("game loop stopped", zap.Int("tick", e.world.Tick()))
}

// Shutdown stops the loop after the current iteration. Safe from any
// goroutine.
func (e *Engine) Shutdown() {
	e.disp.Shutdown()
}

// work is one iteration of the game loop: admit sessions, dispatch queued
// packets, advance the world, flush output.
func (e *Engine) work() bool {
	worked := false

	if e.server != nil {
		for {
			select {
			case sess := <-e.server.NewSessions():
				e.sessions[sess.ID] = sess
				e.log.Info("session admitted", zap.Uint64("session", sess.ID))
				worked = true
				continue
			default:
			}
			break
		}
	}

	for _, sess := range e.sessions {
		if e.drainSession(sess) {
			worked = true
		}
	}

	e.maybeStartTick()
	if e.world.Work() {
		worked = true
	}

	for _, sess := range e.sessions {
		sess.FlushOutput()
	}
	return worked
}

// drainSession dispatches up to MaxPacketsPerWork queued packets and reaps
// the session if it died.
func (e *Engine) drainSession(sess *net.Session) bool {
	if sess.IsClosed() {
		e.dropSession(sess, nil)
		return true
	}
	worked := false
	for i := 0; i < e.cfg.Network.MaxPacketsPerWork; i++ {
		select {
		case data := <-sess.InQueue:
			worked = true
			if err := e.registry.Dispatch(sess, sess.State(), data); err != nil {
				e.log.Warn("protocol violation, dropping connection",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
				e.dropSession(sess, err)
				return true
			}
		default:
			return worked
		}
	}
	return worked
}

// ── Session lifecycle ──────────────────────────────────────────────

// AdoptSession registers an externally created session. Used by tests; the
// normal path goes through the server's accept loop.
func (e *Engine) AdoptSession(sess *net.Session) {
	e.disp.VerifyAccess()
	e.sessions[sess.ID] = sess
}

func (e *Engine) UserBySession(sessionID uint64) *User {
	return e.users[sessionID]
}

// dropSession detaches the bound user, if any, and closes the session.
func (e *Engine) dropSession(sess *net.Session, reason error) {
	if u := e.users[sess.ID]; u != nil {
		e.detachUser(u)
	}
	delete(e.sessions, sess.ID)
	sess.FlushOutput()
	sess.Close()
	if reason != nil {
		e.log.Info("session dropped",
			zap.Uint64("session", sess.ID), zap.Error(reason))
	} else {
		e.log.Info("session closed", zap.Uint64("session", sess.ID))
	}
}

// dropUser is the graceful logout path.
func (e *Engine) dropUser(u *User, reason error) {
	if u.sess != nil {
		u.sess.SetState(packet.StateDisconnecting)
		e.dropSession(u.sess, reason)
		return
	}
	e.detachUser(u)
}

// detachUser unbinds the user from its player. The player stays in the
// world; a waiting turn is re-evaluated since the barrier may have shrunk.
func (e *Engine) detachUser(u *User) {
	if u.sess != nil {
		delete(e.users, u.sess.ID)
	}
	p := u.player
	p.DisconnectUser()
	e.log.Info("player disconnected",
		zap.Uint32("player", uint32(p.ID())),
		zap.String("account", p.Account()),
	)
	e.checkTurnProgress()
}

// ── Login ──────────────────────────────────────────────────────────

// LogOn binds a session to a player, creating the player on first login.
// A persisted seat ID from the players table is reused so the account keeps
// its PlayerID across restarts; pass PlayerIDInvalid for a brand new seat.
// Fails when the account is already bound to a live session.
func (e *Engine) LogOn(sess *net.Session, account string, admin bool, persistedID world.PlayerID) (*User, error) {
	e.disp.VerifyAccess()

	p := e.playersByAccount[account]
	if p == nil {
		if persistedID >= world.PlayerIDFirst && e.players[persistedID] == nil {
			p = e.createPlayerWithID(account, admin, persistedID)
		} else {
			p = e.createPlayer(account, admin)
		}
	}
	if p.IsConnected() {
		return nil, fmt.Errorf("account %q is already in game", account)
	}

	u := NewUser(e, sess, p)
	e.users[sess.ID] = u
	sess.AccountName = account
	sess.SetState(packet.StateInGame)

	u.Send(buildLogOnReply(p.ID(), p.IsAdmin()))
	p.ConnectUser(u)

	e.log.Info("player logged on",
		zap.Uint32("player", uint32(p.ID())),
		zap.String("account", account),
		zap.Bool("admin", admin),
	)

	e.maybeStartTick()
	return u, nil
}

func (e *Engine) createPlayer(account string, admin bool) *Player {
	return e.createPlayerWithID(account, admin, e.nextPlayerID)
}

func (e *Engine) createPlayerWithID(account string, admin bool, id world.PlayerID) *Player {
	if id >= e.nextPlayerID {
		e.nextPlayerID = id + 1
	}

	p := NewPlayer(e, id, account, admin)
	e.players[id] = p
	e.playersByAccount[account] = p
	e.world.AddChangeObserver(p)

	if !admin {
		if envs := e.world.Environments(); len(envs) > 0 {
			env := envs[0]
			l := e.world.CreateLiving(account, env, env.SpawnLocation,
				e.cfg.Game.VisionRange, id)
			p.AddControllable(l)
		}
	}
	return p
}

func (e *Engine) FindPlayer(id world.PlayerID) *Player { return e.players[id] }

// ConnectedPlayerCount is safe only on the engine goroutine.
func (e *Engine) ConnectedPlayerCount() int {
	return len(e.connectedPlayers())
}

func (e *Engine) connectedPlayers() []*Player {
	var out []*Player
	for _, p := range e.players {
		if p.IsConnected() {
			out = append(out, p)
		}
	}
	return out
}

// ── Tick pacing ────────────────────────────────────────────────────

// SetMinTickTime changes the minimum delay between ticks at runtime. Zero
// removes the delay. Takes effect from the next tick.
func (e *Engine) SetMinTickTime(d time.Duration) {
	e.disp.VerifyAccess()
	e.minTickTime = d
	if d == 0 {
		e.minTickPassed = true
	}
	e.log.Info("min tick time changed", zap.Duration("min_tick_time", d))
	e.maybeStartTick()
}

// IsTimeToStartTick reports whether the next tick may begin now.
func (e *Engine) IsTimeToStartTick() bool {
	if e.cfg.Game.RequirePlayer && len(e.connectedPlayers()) == 0 {
		return false
	}
	return e.minTickPassed
}

func (e *Engine) maybeStartTick() {
	if e.world.IsTickWaiting() && e.IsTimeToStartTick() {
		e.world.SetOkToStartTick()
	}
}

func (e *Engine) onTickEnded() {
	if e.minTickTime > 0 {
		e.minTickPassed = false
		time.AfterFunc(e.minTickTime, func() {
			e.disp.BeginInvoke(func() {
				e.minTickPassed = true
				e.maybeStartTick()
			})
		})
	}
	e.maybeStartTick()
}

// ── Turn barrier ───────────────────────────────────────────────────

// onTurnStarting decides whether the pending turn waits for player input.
// A turn nobody needs proceeds immediately; otherwise the max-move timer
// bounds the wait.
func (e *Engine) onTurnStarting(l *world.LivingObject) {
	e.turnSeq++

	if !e.turnNeedsPlayer(l) {
		e.world.SetProceedTurn()
		return
	}

	if e.maxMoveTime > 0 {
		seq := e.turnSeq
		e.maxMoveTimer = time.AfterFunc(e.maxMoveTime, func() {
			e.disp.BeginInvoke(func() { e.forceProceedTurn(seq) })
		})
	}
}

func (e *Engine) onTurnEnded(*world.LivingObject) {
	if e.maxMoveTimer != nil {
		e.maxMoveTimer.Stop()
		e.maxMoveTimer = nil
	}
}

// turnNeedsPlayer reports whether the turn should wait for a reply. A
// sequential turn waits only while its living's controller is connected; a
// simultaneous turn waits while anyone at all is connected.
func (e *Engine) turnNeedsPlayer(l *world.LivingObject) bool {
	if l != nil {
		p := e.players[l.ControllerID]
		return p != nil && p.IsConnected()
	}
	return len(e.connectedPlayers()) > 0
}

// forceProceedTurn fires when the max-move timer expires. Stale callbacks
// from an earlier turn are ignored.
func (e *Engine) forceProceedTurn(seq uint64) {
	if seq != e.turnSeq || !e.world.HasPendingTurn() {
		return
	}
	e.log.Warn("turn timed out, proceeding", zap.Int("tick", e.world.Tick()))
	e.world.SetProceedTurn()
}

// onPlayerProceedTurn is called by the player when its reply arrives.
func (e *Engine) onPlayerProceedTurn(p *Player) {
	if !e.world.HasPendingTurn() {
		return
	}
	switch e.world.Mode() {
	case world.TurnModeSequential:
		// first reply proceeds, whoever sent it
		e.world.SetProceedTurn()
	case world.TurnModeSimultaneous:
		e.checkTurnProgress()
	}
}

// checkTurnProgress re-evaluates the pending turn after anything that can
// satisfy the wait: a reply arriving or a player disconnecting.
func (e *Engine) checkTurnProgress() {
	if !e.world.HasPendingTurn() {
		return
	}
	l := e.world.TurnLiving()
	if !e.turnNeedsPlayer(l) {
		e.world.SetProceedTurn()
		return
	}
	if l == nil && e.allConnectedPlayersReplied() {
		e.world.SetProceedTurn()
	}
}

func (e *Engine) allConnectedPlayersReplied() bool {
	for _, p := range e.connectedPlayers() {
		if !p.proceedTurnReceived {
			return false
		}
	}
	return true
}

func turnModeName(m world.TurnMode) string {
	if m == world.TurnModeSequential {
		return "sequential"
	}
	return "simultaneous"
}
