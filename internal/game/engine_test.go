package game

import (
	gonet "net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/world"
)

func TestTickWaitsForPlayerWhenRequired(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	time.Sleep(20 * time.Millisecond)
	h.call(func() {
		if h.w.Tick() != 0 {
			t.Errorf("tick advanced to %d with no player connected", h.w.Tick())
		}
	})

	h.connect("alice", false)
	h.waitUntil("first tick after connect", func() bool { return h.w.Tick() == 1 })
}

func TestSimultaneousTurnWaitsForEveryConnectedPlayer(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	p2, _ := h.connect("bob", false)

	h.waitUntil("tick 1 pending", func() bool {
		return h.w.Tick() == 1 && h.w.HasPendingTurn()
	})

	h.call(func() {
		if err := p1.receiveProceedTurn(nil); err != nil {
			t.Errorf("p1 reply: %v", err)
		}
	})
	time.Sleep(20 * time.Millisecond)
	h.call(func() {
		if !h.w.HasPendingTurn() || h.w.Tick() != 1 {
			t.Error("turn proceeded before every player replied")
		}
	})

	h.call(func() {
		if err := p2.receiveProceedTurn(nil); err != nil {
			t.Errorf("p2 reply: %v", err)
		}
	})
	h.waitUntil("tick 2 after both replies", func() bool { return h.w.Tick() == 2 })

	// replies are consumed by the turn; both players owe a new one
	h.call(func() {
		if p1.proceedTurnReceived || p2.proceedTurnReceived {
			t.Error("proceed-turn flags not reset at turn end")
		}
	})
}

func TestDisconnectShrinksTurnBarrier(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	p2, _ := h.connect("bob", false)

	h.waitUntil("tick 1 pending", func() bool {
		return h.w.Tick() == 1 && h.w.HasPendingTurn()
	})

	h.call(func() { p1.receiveProceedTurn(nil) })
	time.Sleep(20 * time.Millisecond)
	h.call(func() {
		if h.w.Tick() != 1 {
			t.Fatal("turn proceeded early")
		}
		h.e.detachUser(p2.User())
	})

	h.waitUntil("tick 2 after the laggard left", func() bool { return h.w.Tick() == 2 })
}

func TestDuplicateProceedTurnIsIgnored(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	h.connect("bob", false)

	h.waitUntil("tick 1 pending", func() bool {
		return h.w.Tick() == 1 && h.w.HasPendingTurn()
	})
	h.call(func() {
		if err := p1.receiveProceedTurn(nil); err != nil {
			t.Errorf("first reply: %v", err)
		}
		if err := p1.receiveProceedTurn(nil); err != nil {
			t.Errorf("duplicate reply rejected: %v", err)
		}
	})
	time.Sleep(20 * time.Millisecond)
	h.call(func() {
		if h.w.Tick() != 1 || !h.w.HasPendingTurn() {
			t.Error("duplicate reply satisfied the barrier for another player")
		}
	})
}

func TestProceedTurnForForeignLivingIsViolation(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	p2, _ := h.connect("bob", false)

	h.waitUntil("tick 1 pending", func() bool { return h.w.HasPendingTurn() })
	h.call(func() {
		foreign := p2.Controllables()[0]
		err := p1.receiveProceedTurn(map[world.ObjectID]world.Action{
			foreign.ID(): world.WaitAction{Turns: 1},
		})
		if err == nil {
			t.Error("action for a foreign living accepted")
		}
		if p1.proceedTurnReceived {
			t.Error("violating reply still counted toward the barrier")
		}
	})
}

func TestRejectedProceedTurnQueuesNoActions(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	p2, _ := h.connect("bob", false)

	h.waitUntil("tick 1 pending", func() bool { return h.w.HasPendingTurn() })
	h.call(func() {
		own := p1.Controllables()[0]
		foreign := p2.Controllables()[0]
		err := p1.receiveProceedTurn(map[world.ObjectID]world.Action{
			own.ID():     world.MoveAction{Dir: world.DirEast},
			foreign.ID(): world.WaitAction{Turns: 1},
		})
		if err == nil {
			t.Error("mixed reply with a foreign living accepted")
		}
		if own.QueuedAction() != nil {
			t.Error("rejected reply left an action queued on the valid living")
		}
		if foreign.QueuedAction() != nil {
			t.Error("rejected reply left an action queued on the foreign living")
		}
	})
}

func TestSequentialTurnProceedsOnFirstReply(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSequential)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	// both players must exist before the first tick snapshots the turn
	// order, so create and bind them in one dispatcher batch
	var p1, p2 *Player
	h.call(func() {
		p1 = h.e.createPlayer("alice", false)
		bindPlayer(h.e, p1)
		p2 = h.e.createPlayer("bob", false)
		bindPlayer(h.e, p2)
	})

	l1 := p1.Controllables()[0]
	l2 := p2.Controllables()[0]

	h.waitUntil("first living's turn", func() bool { return h.w.TurnLiving() == l1 })

	// any player's reply proceeds a sequential turn
	h.call(func() { p2.receiveProceedTurn(nil) })
	h.waitUntil("second living's turn", func() bool { return h.w.TurnLiving() == l2 })
}

func TestSequentialTurnSkipsDisconnectedController(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSequential)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	// alice has a living but never connects a user
	var p1 *Player
	h.call(func() { p1 = h.e.createPlayer("alice", false) })
	p2, _ := h.connect("bob", false)

	l2 := p2.Controllables()[0]
	h.waitUntil("turn passed over the offline player's living", func() bool {
		return h.w.Tick() == 1 && h.w.TurnLiving() == l2
	})
	if p1.IsConnected() {
		t.Fatal("offline player unexpectedly connected")
	}
}

func TestMinTickTimeGatesNextTick(t *testing.T) {
	cfg := testConfig()
	cfg.Game.MinTickTime = time.Hour
	h := newEngineHarness(t, cfg, world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	h.waitUntil("tick 1 pending", func() bool { return h.w.HasPendingTurn() })
	h.call(func() { p1.receiveProceedTurn(nil) })

	h.waitUntil("tick 1 finished", func() bool { return h.w.IsTickWaiting() })
	time.Sleep(20 * time.Millisecond)
	h.call(func() {
		if h.w.Tick() != 1 {
			t.Errorf("tick %d started before the minimum tick time", h.w.Tick())
		}
	})

	// runtime reconfiguration lifts the gate immediately
	h.call(func() { h.e.SetMinTickTime(0) })
	h.waitUntil("tick 2 after lifting the gate", func() bool { return h.w.Tick() == 2 })
}

func TestMaxMoveTimeForcesTurn(t *testing.T) {
	cfg := testConfig()
	cfg.Game.MaxMoveTime = 20 * time.Millisecond
	h := newEngineHarness(t, cfg, world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	h.connect("alice", false)
	// alice never replies; the turn must proceed on its own
	h.waitUntil("tick 2 by timeout", func() bool { return h.w.Tick() >= 2 })
}

func TestPlayerIDsStartAtTwoAndAreUnique(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	p1, _ := h.connect("alice", false)
	p2, _ := h.connect("bob", false)

	if p1.ID() != world.PlayerIDFirst {
		t.Fatalf("first player id = %d, want %d", p1.ID(), world.PlayerIDFirst)
	}
	if p2.ID() == p1.ID() || p2.ID() < world.PlayerIDFirst {
		t.Fatalf("second player id = %d", p2.ID())
	}
	if p1.ID() == world.PlayerIDInvalid || p1.ID() == world.PlayerIDServer {
		t.Fatal("player assigned a reserved id")
	}
}

func TestSetNextPlayerIDSeedsAllocator(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	h.call(func() { h.e.SetNextPlayerID(40) })
	p, _ := h.connect("alice", false)
	if p.ID() != 40 {
		t.Fatalf("player id = %d, want 40", p.ID())
	}
}

func pipeSession(id uint64, wake func()) (*net.Session, gonet.Conn) {
	c1, c2 := gonet.Pipe()
	sess := net.NewSession(c1, id, 32, 256, 0, time.Second, wake, zap.NewNop())
	return sess, c2
}

func TestLogOnRejectsDuplicateAccount(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	s1, c1 := pipeSession(1, h.e.disp.Signal)
	defer c1.Close()
	s2, c2 := pipeSession(2, h.e.disp.Signal)
	defer c2.Close()

	h.call(func() {
		h.e.AdoptSession(s1)
		h.e.AdoptSession(s2)
		if _, err := h.e.LogOn(s1, "alice", false, world.PlayerIDInvalid); err != nil {
			t.Errorf("first login: %v", err)
		}
		if _, err := h.e.LogOn(s2, "alice", false, world.PlayerIDInvalid); err == nil {
			t.Error("second login on a bound account succeeded")
		}
	})
}

func TestLogOnWithPersistedIDReusesSeat(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	s1, c1 := pipeSession(1, h.e.disp.Signal)
	defer c1.Close()

	h.call(func() {
		h.e.AdoptSession(s1)
		u, err := h.e.LogOn(s1, "alice", false, world.PlayerID(7))
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		if u.Player().ID() != 7 {
			t.Errorf("player id = %d, want persisted 7", u.Player().ID())
		}
		// the allocator moved past the restored seat
		if p := h.e.createPlayer("bob", false); p.ID() != 8 {
			t.Errorf("next fresh seat = %d, want 8", p.ID())
		}
	})
}

func TestReconnectRebindsExistingPlayer(t *testing.T) {
	h := newEngineHarness(t, testConfig(), world.TurnModeSimultaneous)
	h.call(func() { flatEnv(h.w, world.VisibilityLivingLOS, 16, 16) })

	s1, c1 := pipeSession(1, h.e.disp.Signal)
	defer c1.Close()

	var firstID world.PlayerID
	h.call(func() {
		h.e.AdoptSession(s1)
		u, err := h.e.LogOn(s1, "alice", false, world.PlayerIDInvalid)
		if err != nil {
			t.Fatalf("first login: %v", err)
		}
		firstID = u.Player().ID()
		h.e.dropUser(u, nil)
	})

	s2, c2 := pipeSession(2, h.e.disp.Signal)
	defer c2.Close()
	h.call(func() {
		h.e.AdoptSession(s2)
		u, err := h.e.LogOn(s2, "alice", false, world.PlayerIDInvalid)
		if err != nil {
			t.Fatalf("relogin: %v", err)
		}
		if u.Player().ID() != firstID {
			t.Errorf("relogin got player %d, want %d", u.Player().ID(), firstID)
		}
		if len(u.Player().Controllables()) != 1 {
			t.Errorf("reconnected player has %d controllables", len(u.Player().Controllables()))
		}
	})
}
