// Package world models the office: the tile map, the player and the digital
// employees, plus the movement and proximity rules the game loop drives.
package world

import (
	"fmt"
	"math"
	"strings"

	"github.com/venturebuilderai/officesim/internal/config"
)

// Vec3 is a position in world space. The floor plane is XZ; Y is height and
// only matters for presentation.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistXZ returns the distance between two points on the floor plane.
func (v Vec3) DistXZ(o Vec3) float64 {
	return math.Hypot(v.X-o.X, v.Z-o.Z)
}

// Map is the tile layout of the office. 'W' cells are walls, anything else
// is walkable floor. Legacy marker characters such as 'P' and 'N' are kept
// in the rows but carry no behavior; live entity positions come from world
// coordinates.
type Map struct {
	Rows   []string
	Width  int
	Height int
}

// ParseMap validates the raw rows and builds a Map.
func ParseMap(rows []string) (*Map, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("world: map has no rows")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("world: map row 0 is empty")
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("world: map row %d has width %d, want %d", i, len(row), width)
		}
	}
	out := make([]string, len(rows))
	copy(out, rows)
	return &Map{Rows: out, Width: width, Height: len(rows)}, nil
}

// WallAt reports whether the cell is a wall. Out-of-bounds cells count as
// walls so callers never index past the grid.
func (m *Map) WallAt(col, row int) bool {
	if row < 0 || row >= m.Height || col < 0 || col >= m.Width {
		return true
	}
	return m.Rows[row][col] == 'W'
}

// NPC is one digital employee.
type NPC struct {
	ID       string
	Name     string
	Role     string
	Tone     string
	Voice    string
	Company  string
	Greeting string
	Traits   []string
	Pos      Vec3
}

// SystemPrompt builds the persona prompt used to seed text conversations.
func (n *NPC) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("Interaction Framework:\n")
	b.WriteString("- Maintain consistent personality throughout conversation\n")
	b.WriteString("- Remember previous context within the dialogue\n")
	b.WriteString("- Use natural speech patterns with occasional filler words\n")
	b.WriteString("- Show emotional intelligence in responses\n")
	b.WriteString("- Keep responses concise but meaningful (2-3 sentences)\n")
	b.WriteString("- React appropriately to both positive and negative interactions\n\n")
	fmt.Fprintf(&b, "You are %s, %s at %s. Core traits:\n", n.Name, n.Role, n.Company)
	for _, t := range n.Traits {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	return b.String()
}

// Instructions builds the session instructions for the voice channel.
func (n *NPC) Instructions() string {
	return fmt.Sprintf(
		"You are %[1]s, %[2]s at %[3]s. "+
			"In your first response, say exactly 'Hello there, I am %[1]s, %[2]s at %[3]s.' "+
			"Then ask how you can assist the user. For subsequent responses, do not reintroduce yourself. "+
			"Address the user as 'you' or 'user', and respond naturally in a %[4]s tone.",
		n.Name, n.Role, n.Company, n.Tone,
	)
}

// Player is the user-controlled character.
type Player struct {
	Pos   Vec3
	Yaw   float64 // degrees, 0 faces -Z, positive turns clockwise
	Speed float64
}

// World holds the complete game state that movement and proximity act on.
type World struct {
	Title    string
	Subtitle string
	Map      *Map
	Player   *Player
	NPCs     []*NPC

	RoomLimit    float64
	InteractDist float64
}

// New builds a World from its configuration.
func New(wc *config.WorldConfig) (*World, error) {
	m, err := ParseMap(wc.Map)
	if err != nil {
		return nil, err
	}
	w := &World{
		Title:        wc.Title,
		Subtitle:     wc.Subtitle,
		Map:          m,
		RoomLimit:    wc.RoomLimit,
		InteractDist: wc.InteractionDistance,
		Player: &Player{
			Pos:   Vec3{X: 0, Y: 0.5, Z: 0},
			Speed: wc.PlayerSpeed,
		},
	}
	for _, pc := range wc.Personas {
		npc := &NPC{
			ID:       pc.ID,
			Name:     pc.Name,
			Role:     pc.Role,
			Tone:     pc.Tone,
			Voice:    pc.Voice,
			Company:  wc.Title,
			Greeting: pc.Greeting,
			Traits:   append([]string(nil), pc.Traits...),
			Pos:      Vec3{X: pc.Position[0], Y: pc.Position[1], Z: pc.Position[2]},
		}
		if npc.Greeting == "" {
			npc.Greeting = fmt.Sprintf("Hello there, I am %s, %s at %s. How can I assist you today?",
				npc.Name, npc.Role, npc.Company)
		}
		w.NPCs = append(w.NPCs, npc)
	}
	return w, nil
}

// MovePlayer moves one step relative to the player's heading. dx is strafe
// (-1 left, +1 right) and dz is walk (-1 forward, +1 back). Each axis of the
// destination is accepted independently when it stays inside the room and
// off interior wall cells.
func (w *World) MovePlayer(dx, dz float64) {
	p := w.Player
	angle := -p.Yaw * math.Pi / 180
	moveX := (dx*math.Cos(angle) + dz*math.Sin(angle)) * p.Speed
	moveZ := (-dx*math.Sin(angle) + dz*math.Cos(angle)) * p.Speed

	newX := p.Pos.X + moveX
	newZ := p.Pos.Z + moveZ

	if math.Abs(newX) < w.RoomLimit && w.walkable(Vec3{X: newX, Z: p.Pos.Z}) {
		p.Pos.X = newX
	}
	if math.Abs(newZ) < w.RoomLimit && w.walkable(Vec3{X: p.Pos.X, Z: newZ}) {
		p.Pos.Z = newZ
	}
}

func (w *World) walkable(pos Vec3) bool {
	col, row := w.CellFor(pos)
	return !w.Map.WallAt(col, row)
}

// TurnPlayer rotates the player's heading by deg degrees, clockwise positive.
func (w *World) TurnPlayer(deg float64) {
	yaw := math.Mod(w.Player.Yaw+deg, 360)
	if yaw < 0 {
		yaw += 360
	}
	w.Player.Yaw = yaw
}

// NearestNPC returns the closest NPC and its floor-plane distance, or nil
// when the world has no NPCs.
func (w *World) NearestNPC() (*NPC, float64) {
	var best *NPC
	bestDist := math.MaxFloat64
	for _, n := range w.NPCs {
		d := w.Player.Pos.DistXZ(n.Pos)
		if d < bestDist {
			best, bestDist = n, d
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestDist
}

// NPCInRange returns the nearest NPC strictly inside the interaction
// distance, or nil.
func (w *World) NPCInRange() *NPC {
	n, d := w.NearestNPC()
	if n == nil || d >= w.InteractDist {
		return nil
	}
	return n
}

// PushPlayerBack places the player three units away from the NPC along the
// line between them, clamped to the room. Used when a conversation ends so
// the proximity check does not immediately fire again.
func (w *World) PushPlayerBack(npc *NPC) {
	p := w.Player
	dx := p.Pos.X - npc.Pos.X
	dz := p.Pos.Z - npc.Pos.Z
	dist := math.Hypot(dx, dz)
	if dist > 0 {
		dx /= dist
		dz /= dist
	} else {
		dx, dz = 0, 1
	}
	p.Pos.X = clamp(npc.Pos.X+dx*3, -w.RoomLimit, w.RoomLimit)
	p.Pos.Z = clamp(npc.Pos.Z+dz*3, -w.RoomLimit, w.RoomLimit)
}

// CellFor maps a world position to an interior map cell for rendering.
func (w *World) CellFor(pos Vec3) (col, row int) {
	fx := (pos.X + w.RoomLimit) / (2 * w.RoomLimit)
	fz := (pos.Z + w.RoomLimit) / (2 * w.RoomLimit)
	col = 1 + int(fx*float64(w.Map.Width-2))
	row = 1 + int(fz*float64(w.Map.Height-2))
	col = clampInt(col, 1, w.Map.Width-2)
	row = clampInt(row, 1, w.Map.Height-2)
	return col, row
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
