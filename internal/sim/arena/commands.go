package arena

import (
	"math"

	"github.com/harp-lab/maze-game/internal/protocol"
)

// AppliedCommand is one agent line consumed during a tick.
type AppliedCommand struct {
	Side protocol.Side `json:"side"`
	Line string        `json:"line"`
}

// drainCommands consumes queued lines until a behavioral command takes the
// tick's action slot or the queue is empty. Non-behavioral commands never use
// the slot.
func (m *Match) drainCommands(a *Agent) error {
	for {
		line, ok := a.ctl.NextCommand()
		if !ok {
			return nil
		}
		a.pushLog(protocol.LogText(line))
		m.applied = append(m.applied, AppliedCommand{Side: a.Side, Line: line})
		m.logger.Debug("command", "tick", m.tick, "side", a.Side, "cmd", line)

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			return err
		}
		switch cmd.Kind {
		case protocol.CmdToward:
			a.TX, a.TY = cmd.X, cmd.Y
			return nil
		case protocol.CmdBlock:
			if m.placeTempWall(a, cmd) || m.cfg.PermissiveBlock {
				return nil
			}
		case protocol.CmdName:
			a.Name = cmd.Text
		case protocol.CmdComment:
			m.logger.Info("comment", "side", a.Side, "name", a.Name, "text", cmd.Text)
		}
	}
}

// placeTempWall validates a block command: the agent must stand on the named
// tile, afford the cost, and the edge must be free.
func (m *Match) placeTempWall(a *Agent, cmd protocol.Command) bool {
	if a.CoinsHeld < m.cfg.TempWallCost {
		return false
	}
	if int(math.Floor(a.X)) != cmd.TX || int(math.Floor(a.Y)) != cmd.TY {
		return false
	}
	edge := cmd.Dir.Edge(cmd.TX, cmd.TY)
	if m.walls.has(edge) {
		return false
	}
	tw := &TempWall{
		Wall:      Wall{id: m.nextID(), Segment: edge},
		TicksLeft: m.cfg.TempWallLifetime,
		Side:      a.Side,
	}
	if !m.walls.insert(tw) {
		return false
	}
	m.tempWalls = append(m.tempWalls, tw)
	a.CoinsHeld -= m.cfg.TempWallCost
	m.logger.Debug("twall placed", "tick", m.tick, "side", a.Side, "edge", edge)
	return true
}
