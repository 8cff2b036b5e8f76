package arena

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/harp-lab/maze-game/internal/protocol"
)

// Frame is the immutable per-tick snapshot handed to the consumer pipeline.
// Static walls are not repeated; consumers get them once up front.
type Frame struct {
	Tick     uint64        `json:"tick" msgpack:"tick"`
	Entities []EntityState `json:"entities" msgpack:"entities"`
	Agents   []AgentState  `json:"agents" msgpack:"agents"`
}

// EntityState describes a temporary wall (X0..Y1 endpoints) or a disc (X0,Y0
// centre, R radius).
type EntityState struct {
	Kind      string  `json:"kind" msgpack:"kind"`
	ID        int     `json:"id" msgpack:"id"`
	X0        float64 `json:"x0" msgpack:"x0"`
	Y0        float64 `json:"y0" msgpack:"y0"`
	X1        float64 `json:"x1,omitempty" msgpack:"x1,omitempty"`
	Y1        float64 `json:"y1,omitempty" msgpack:"y1,omitempty"`
	R         float64 `json:"r,omitempty" msgpack:"r,omitempty"`
	Phase     int     `json:"phase" msgpack:"phase"`
	Side      string  `json:"side,omitempty" msgpack:"side,omitempty"`
	TicksLeft int     `json:"ticks_left,omitempty" msgpack:"ticks_left,omitempty"`
}

type AgentState struct {
	Side       string   `json:"side" msgpack:"side"`
	Name       string   `json:"name" msgpack:"name"`
	X          float64  `json:"x" msgpack:"x"`
	Y          float64  `json:"y" msgpack:"y"`
	A          float64  `json:"a" msgpack:"a"`
	V          float64  `json:"v" msgpack:"v"`
	Flags      int      `json:"flags" msgpack:"flags"`
	CoinsHeld  int      `json:"coins_held" msgpack:"coins_held"`
	CoinsTotal int      `json:"coins_total" msgpack:"coins_total"`
	Carrying   bool     `json:"carrying" msgpack:"carrying"`
	Log        []string `json:"log" msgpack:"log"`
	SeenWalls  []int    `json:"seen_walls" msgpack:"seen_walls"`
}

// TickLogEntry is what a TickLogger records after every tick.
type TickLogEntry struct {
	Tick     uint64           `json:"tick"`
	Commands []AppliedCommand `json:"commands,omitempty"`
	Digest   string           `json:"digest"`
}

func (m *Match) frame() Frame {
	f := Frame{
		Tick:     m.tick,
		Entities: make([]EntityState, 0, len(m.tempWalls)+len(m.flags)+len(m.coins)+len(m.homes)),
		Agents:   make([]AgentState, 0, len(m.agents)),
	}
	for _, tw := range m.tempWalls {
		f.Entities = append(f.Entities, EntityState{
			Kind: KindTempWall.String(), ID: tw.id,
			X0: tw.X0, Y0: tw.Y0, X1: tw.X1, Y1: tw.Y1,
			Side: string(tw.Side), TicksLeft: tw.TicksLeft,
		})
	}
	for _, h := range m.homes {
		f.Entities = append(f.Entities, discState(KindHome, &h.body, h.Side))
	}
	for _, fl := range m.flags {
		f.Entities = append(f.Entities, discState(KindFlag, &fl.body, fl.Side))
	}
	for _, c := range m.coins {
		f.Entities = append(f.Entities, discState(KindCoin, &c.body, ""))
	}
	for _, a := range m.agents {
		f.Agents = append(f.Agents, AgentState{
			Side: string(a.Side), Name: a.Name,
			X: a.X, Y: a.Y, A: a.A, V: a.V,
			Flags: a.Flags, CoinsHeld: a.CoinsHeld, CoinsTotal: a.CoinsTotal,
			Carrying:  a.carrying != nil,
			Log:       a.Log(),
			SeenWalls: a.seenWalls,
		})
	}
	return f
}

func discState(k Kind, b *body, side protocol.Side) EntityState {
	return EntityState{Kind: k.String(), ID: b.id, X0: b.X, Y0: b.Y, R: b.R, Phase: b.Phase, Side: string(side)}
}

// Digest hashes the simulated state at the current tick. Two runs with the
// same seed, maze and commands produce the same sequence of digests.
func (m *Match) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	putU64(h, &tmp, m.tick)
	for _, a := range m.agents {
		putF64(h, &tmp, a.X, a.Y, a.A, a.V, a.TX, a.TY)
		putU64(h, &tmp, uint64(a.Flags), uint64(a.CoinsHeld), uint64(a.CoinsTotal))
		carried := uint64(0)
		if a.carrying != nil {
			carried = uint64(a.carrying.id) + 1
		}
		putU64(h, &tmp, carried)
	}
	for _, f := range m.flags {
		putU64(h, &tmp, uint64(int64(f.Phase)))
	}
	for _, c := range m.coins {
		putF64(h, &tmp, c.X, c.Y)
		putU64(h, &tmp, uint64(int64(c.Phase)))
	}
	for _, tw := range m.tempWalls {
		putF64(h, &tmp, tw.X0, tw.Y0, tw.X1, tw.Y1)
		putU64(h, &tmp, uint64(tw.TicksLeft))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func putU64(h hash.Hash, tmp *[8]byte, vs ...uint64) {
	for _, v := range vs {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
}

func putF64(h hash.Hash, tmp *[8]byte, vs ...float64) {
	for _, v := range vs {
		putU64(h, tmp, math.Float64bits(v))
	}
}
