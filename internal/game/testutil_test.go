package game

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dwarrowdelf/server/internal/config"
	"github.com/dwarrowdelf/server/internal/data"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/world"
)

const (
	terrainEmpty uint16 = 1
	terrainRock  uint16 = 2
)

func testTerrains() *data.TerrainTable {
	return data.NewTerrainTable(
		[]data.TerrainTemplate{
			{ID: terrainEmpty, Name: "empty", SeeThrough: true, Walkable: true},
			{ID: terrainRock, Name: "rock", SeeThrough: false, Walkable: false},
		},
		nil,
	)
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Game.MinTickTime = 0
	cfg.Game.MaxMoveTime = 0
	cfg.Game.RequirePlayer = true
	cfg.Game.VisionRange = 5
	return cfg
}

// flatEnv builds a single-level environment, all open floor.
func flatEnv(w *world.World, mode world.VisibilityMode, width, height int) *world.Environment {
	env := w.CreateEnvironment("test", world.Size{Width: width, Height: height, Depth: 1},
		mode, testTerrains(),
		func(world.Point) world.TileData { return world.TileData{TerrainID: terrainEmpty} })
	env.MinedTile = world.TileData{TerrainID: terrainEmpty}
	env.SpawnLocation = world.Point{X: width / 2, Y: height / 2, Z: 0}
	return env
}

// packetSink captures a user's outbound packets.
type packetSink struct {
	mu   sync.Mutex
	pkts [][]byte
}

func (s *packetSink) push(data []byte) {
	s.mu.Lock()
	s.pkts = append(s.pkts, data)
	s.mu.Unlock()
}

func (s *packetSink) reset() {
	s.mu.Lock()
	s.pkts = nil
	s.mu.Unlock()
}

func (s *packetSink) byOpcode(op byte) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]byte
	for _, p := range s.pkts {
		if len(p) > 0 && p[0] == op {
			out = append(out, p)
		}
	}
	return out
}

func (s *packetSink) count(op byte) int { return len(s.byOpcode(op)) }

// revealedPoints parses every terrain reveal packet captured so far.
func (s *packetSink) revealedPoints() []world.Point {
	var out []world.Point
	for _, p := range s.byOpcode(packet.S_OPCODE_TERRAIN_REVEAL) {
		r := packet.NewReader(p)
		_ = r.ReadD() // environment id
		n := int(r.ReadD())
		for i := 0; i < n; i++ {
			pt := world.Point{
				X: int(int16(r.ReadH())),
				Y: int(int16(r.ReadH())),
				Z: int(int16(r.ReadH())),
			}
			_ = r.ReadH() // terrain
			_ = r.ReadH() // interior
			out = append(out, pt)
		}
	}
	return out
}

// revealedObjects parses object ids out of captured object data packets.
func (s *packetSink) revealedObjects() []world.ObjectID {
	var out []world.ObjectID
	for _, p := range s.byOpcode(packet.S_OPCODE_OBJECT_DATA) {
		r := packet.NewReader(p)
		out = append(out, world.ObjectID(r.ReadD()))
	}
	return out
}

// bindPlayer attaches a sink-backed user to a player.
func bindPlayer(e *Engine, p *Player) *packetSink {
	sink := &packetSink{}
	u := NewUser(e, nil, p)
	u.send = sink.push
	p.ConnectUser(u)
	return sink
}

// engineHarness runs an engine loop on its own goroutine and lets tests
// execute closures on it synchronously.
type engineHarness struct {
	t    *testing.T
	e    *Engine
	w    *world.World
	done chan struct{}
}

func newEngineHarness(t *testing.T, cfg *config.Config, mode world.TurnMode) *engineHarness {
	t.Helper()
	w := world.NewWorld(mode, zap.NewNop())
	e := NewEngine(cfg, w, nil, zap.NewNop())
	h := &engineHarness{t: t, e: e, w: w, done: make(chan struct{})}
	go func() {
		e.Run()
		close(h.done)
	}()
	t.Cleanup(func() {
		e.Shutdown()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("engine loop did not stop")
		}
	})
	return h
}

// call runs fn on the engine goroutine and waits for it.
func (h *engineHarness) call(fn func()) {
	h.t.Helper()
	done := make(chan struct{})
	h.e.disp.BeginInvoke(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.t.Fatal("engine call timed out")
	}
}

// waitUntil polls cond on the engine goroutine.
func (h *engineHarness) waitUntil(msg string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ok := false
		h.call(func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting: %s", msg)
}

// connect creates a player with a sink-backed user on the engine goroutine.
func (h *engineHarness) connect(account string, admin bool) (*Player, *packetSink) {
	h.t.Helper()
	var p *Player
	var sink *packetSink
	h.call(func() {
		p = h.e.createPlayer(account, admin)
		sink = bindPlayer(h.e, p)
	})
	return p, sink
}
