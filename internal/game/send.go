package game

import (
	"fmt"

	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/world"
)

// Outbound packet builders. Object references go on the wire as object IDs,
// 0 meaning none; locations as three 16-bit coordinates.

func writePoint(w *packet.Writer, p world.Point) {
	w.WriteH(uint16(p.X))
	w.WriteH(uint16(p.Y))
	w.WriteH(uint16(p.Z))
}

func objectID(obj world.Object) world.ObjectID {
	if obj == nil {
		return 0
	}
	return obj.ID()
}

func containerID(c world.Container) world.ObjectID {
	if c == nil {
		return 0
	}
	return c.ID()
}

func buildLogOnReply(playerID world.PlayerID, admin bool) []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOGIN_REPLY)
	w.WriteD(int32(playerID))
	w.WriteBool(admin)
	return w.Bytes()
}

func buildLogOutReply() []byte {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOGOUT_REPLY)
	return w.Bytes()
}

// sendWorldData describes the global simulation state.
func (p *Player) sendWorldData() {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WORLD_DATA)
	w.WriteD(int32(p.world.Tick()))
	w.WriteQ(p.world.Date())
	w.WriteC(byte(p.world.Mode()))
	p.Send(w.Bytes())
}

// sendMapData describes one environment: id, size and visibility mode.
// Terrain follows separately via reveals.
func (p *Player) sendMapData(env *world.Environment) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_MAP_DATA)
	w.WriteD(int32(env.ID()))
	w.WriteS(env.Name())
	sz := env.Size()
	w.WriteH(uint16(sz.Width))
	w.WriteH(uint16(sz.Height))
	w.WriteH(uint16(sz.Depth))
	w.WriteC(byte(env.VisibilityMode()))
	p.Send(w.Bytes())
}

// sendTerrainReveal pushes a batch of tiles with their terrain data.
func (p *Player) sendTerrainReveal(env *world.Environment, pts []world.Point) {
	if len(pts) == 0 {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_TERRAIN_REVEAL)
	w.WriteD(int32(env.ID()))
	w.WriteD(int32(len(pts)))
	for _, pt := range pts {
		writePoint(w, pt)
		td := env.GetTileData(pt)
		w.WriteH(td.TerrainID)
		w.WriteH(td.InteriorID)
	}
	p.Send(w.Bytes())
}

// sendFullTerrain reveals every tile of an environment.
func (p *Player) sendFullTerrain(env *world.Environment) {
	sz := env.Size()
	pts := make([]world.Point, 0, sz.Volume())
	for z := 0; z < sz.Depth; z++ {
		for y := 0; y < sz.Height; y++ {
			for x := 0; x < sz.Width; x++ {
				pts = append(pts, world.Point{X: x, Y: y, Z: z})
			}
		}
	}
	p.sendTerrainReveal(env, pts)
}

// sendObjectData pushes the full description of one object.
func (p *Player) sendObjectData(obj world.Object) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_OBJECT_DATA)
	w.WriteD(int32(obj.ID()))
	w.WriteS(obj.Name())
	switch o := obj.(type) {
	case *world.LivingObject:
		w.WriteC(1)
		w.WriteD(int32(containerID(o.Parent())))
		writePoint(w, o.Location())
		w.WriteD(int32(o.ControllerID))
		w.WriteH(uint16(o.VisionRange()))
	case *world.ItemObject:
		w.WriteC(2)
		w.WriteD(int32(containerID(o.Parent())))
		writePoint(w, o.Location())
		w.WriteBool(o.Worn)
		w.WriteBool(o.Wielded)
	case *world.Environment:
		w.WriteC(3)
	default:
		w.WriteC(0)
	}
	p.Send(w.Bytes())
}

// sendEnvironmentObjects pushes object data for everything in the
// environment, including contents of nested containers.
func (p *Player) sendEnvironmentObjects(env *world.Environment) {
	var walk func(c world.Container)
	walk = func(c world.Container) {
		for _, m := range c.Contents() {
			p.sendObjectData(m)
			if inner, ok := m.(world.Container); ok {
				walk(inner)
			}
		}
	}
	walk(env)
}

// sendControllables announces livings the player controls.
func (p *Player) sendControllables(livings []*world.LivingObject) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CONTROLLABLES)
	w.WriteD(int32(len(livings)))
	for _, l := range livings {
		w.WriteD(int32(l.ID()))
	}
	p.Send(w.Bytes())
}

// sendChange serializes one world change.
func (p *Player) sendChange(c world.Change) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CHANGE)
	switch ch := c.(type) {
	case world.ObjectCreatedChange:
		w.WriteC(packet.ChangeKindObjectCreated)
		w.WriteD(int32(ch.Object.ID()))
	case world.ObjectDestructedChange:
		w.WriteC(packet.ChangeKindObjectDestructed)
		w.WriteD(int32(ch.Object.ID()))
	case world.ObjectMoveChange:
		w.WriteC(packet.ChangeKindObjectMove)
		w.WriteD(int32(ch.Object.ID()))
		w.WriteD(int32(containerID(ch.Source)))
		writePoint(w, ch.SourceLocation)
		w.WriteD(int32(containerID(ch.Destination)))
		writePoint(w, ch.DestinationLocation)
	case world.ObjectMoveLocationChange:
		w.WriteC(packet.ChangeKindObjectMoveLoc)
		w.WriteD(int32(ch.Object.ID()))
		writePoint(w, ch.SourceLocation)
		writePoint(w, ch.DestinationLocation)
	case world.MapChange:
		w.WriteC(packet.ChangeKindMap)
		w.WriteD(int32(ch.Environment.ID()))
		writePoint(w, ch.Location)
		w.WriteH(ch.NewTile.TerrainID)
		w.WriteH(ch.NewTile.InteriorID)
	case world.PropertyChange:
		w.WriteC(packet.ChangeKindProperty)
		w.WriteD(int32(ch.Object.ID()))
		w.WriteC(byte(ch.Property))
		writePropertyValue(w, ch.Value)
	case world.ActionStartedChange:
		w.WriteC(packet.ChangeKindActionStarted)
		w.WriteD(int32(ch.Living.ID()))
	case world.ActionProgressChange:
		w.WriteC(packet.ChangeKindActionProgress)
		w.WriteD(int32(ch.Living.ID()))
		w.WriteD(int32(ch.TicksLeft))
	case world.ActionDoneChange:
		w.WriteC(packet.ChangeKindActionDone)
		w.WriteD(int32(ch.Living.ID()))
		w.WriteC(byte(ch.State))
	case world.TurnStartChange:
		w.WriteC(packet.ChangeKindTurnStart)
		w.WriteD(int32(objectID(livingOrNil(ch.Living))))
	case world.TurnEndChange:
		w.WriteC(packet.ChangeKindTurnEnd)
	case world.TickStartChange:
		w.WriteC(packet.ChangeKindTickStart)
		w.WriteD(int32(ch.Tick))
	case world.GameDateChange:
		w.WriteC(packet.ChangeKindGameDate)
		w.WriteQ(ch.Date)
	default:
		panic(fmt.Sprintf("unhandled change kind %T", c))
	}
	p.Send(w.Bytes())
}

func livingOrNil(l *world.LivingObject) world.Object {
	if l == nil {
		return nil
	}
	return l
}

// value encoding tags for property values
const (
	propValBool   byte = 1
	propValInt    byte = 2
	propValString byte = 3
)

func writePropertyValue(w *packet.Writer, v any) {
	switch val := v.(type) {
	case bool:
		w.WriteC(propValBool)
		w.WriteBool(val)
	case int:
		w.WriteC(propValInt)
		w.WriteD(int32(val))
	case string:
		w.WriteC(propValString)
		w.WriteS(val)
	default:
		w.WriteC(propValString)
		w.WriteS(fmt.Sprint(v))
	}
}
