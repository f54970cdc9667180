package world

import (
	"math"
	"strings"
	"testing"

	"github.com/venturebuilderai/officesim/internal/config"
)

func testWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(config.DefaultWorld())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestParseMapRejectsRaggedRows(t *testing.T) {
	if _, err := ParseMap(nil); err == nil {
		t.Fatal("expected error for empty map")
	}
	if _, err := ParseMap([]string{"WWW", "WW"}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	m, err := ParseMap([]string{"WWW", "W.W", "WWW"})
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if m.Width != 3 || m.Height != 3 {
		t.Fatalf("got %dx%d, want 3x3", m.Width, m.Height)
	}
}

func TestWallAt(t *testing.T) {
	m, err := ParseMap([]string{"WWW", "W.W", "WWW"})
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if !m.WallAt(0, 0) {
		t.Error("corner should be wall")
	}
	if m.WallAt(1, 1) {
		t.Error("center should be floor")
	}
	if !m.WallAt(-1, 1) || !m.WallAt(1, 5) {
		t.Error("out of bounds should count as wall")
	}
}

func TestMovePlayerHeadingRelative(t *testing.T) {
	w := testWorld(t)

	// Facing -Z, walking forward decreases Z only.
	w.MovePlayer(0, -1)
	if got := w.Player.Pos.Z; math.Abs(got-(-0.3)) > 1e-9 {
		t.Fatalf("forward at yaw 0: Z = %v, want -0.3", got)
	}
	if got := w.Player.Pos.X; math.Abs(got) > 1e-9 {
		t.Fatalf("forward at yaw 0: X = %v, want 0", got)
	}

	// After turning 90 degrees clockwise, forward moves along +X.
	w.Player.Pos = Vec3{X: 0, Y: 0.5, Z: 0}
	w.TurnPlayer(90)
	w.MovePlayer(0, -1)
	if got := w.Player.Pos.X; math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("forward at yaw 90: X = %v, want 0.3", got)
	}
	if got := w.Player.Pos.Z; math.Abs(got) > 1e-9 {
		t.Fatalf("forward at yaw 90: Z = %v, want 0", got)
	}
}

func TestMovePlayerClampsPerAxis(t *testing.T) {
	w := testWorld(t)
	w.Player.Pos = Vec3{X: 4.4, Y: 0.5, Z: 0}

	// X would cross the limit and stays put, Z is free to change.
	w.MovePlayer(1, 1)
	if got := w.Player.Pos.X; got != 4.4 {
		t.Fatalf("X = %v, want unchanged 4.4", got)
	}
	if got := w.Player.Pos.Z; math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("Z = %v, want 0.3", got)
	}
}

func TestMovePlayerBlockedByInteriorWall(t *testing.T) {
	wc := config.DefaultWorld()
	wc.Map = []string{
		"WWWWWWW",
		"W     W",
		"W W   W",
		"W     W",
		"WWWWWWW",
	}
	w, err := New(wc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Strafe left toward the interior wall cell; the blocked axis freezes.
	for i := 0; i < 6; i++ {
		w.MovePlayer(-1, 0)
	}
	if got := w.Player.Pos.X; math.Abs(got-(-0.9)) > 1e-9 {
		t.Fatalf("X = %v, want stopped at -0.9 before the wall", got)
	}
	if got := w.Player.Pos.Z; got != 0 {
		t.Fatalf("Z = %v, want unchanged 0", got)
	}
}

func TestTurnPlayerWraps(t *testing.T) {
	w := testWorld(t)
	w.TurnPlayer(-90)
	if got := w.Player.Yaw; got != 270 {
		t.Fatalf("yaw = %v, want 270", got)
	}
	w.TurnPlayer(180)
	if got := w.Player.Yaw; got != 90 {
		t.Fatalf("yaw = %v, want 90", got)
	}
}

func TestNPCInRangeBoundary(t *testing.T) {
	w := testWorld(t)
	npc := w.NPCs[0]

	// Exactly at the interaction distance does not count.
	w.Player.Pos = Vec3{X: npc.Pos.X + w.InteractDist, Y: 0.5, Z: npc.Pos.Z}
	if got := w.NPCInRange(); got != nil {
		t.Fatalf("at exact distance got %q, want none", got.ID)
	}

	w.Player.Pos = Vec3{X: npc.Pos.X + w.InteractDist - 0.01, Y: 0.5, Z: npc.Pos.Z}
	got := w.NPCInRange()
	if got == nil || got.ID != npc.ID {
		t.Fatalf("just inside distance got %v, want %q", got, npc.ID)
	}
}

func TestNearestNPCIgnoresHeight(t *testing.T) {
	w := testWorld(t)
	npc := w.NPCs[0]
	w.Player.Pos = Vec3{X: npc.Pos.X, Y: 0.5, Z: npc.Pos.Z + 1}
	_, d := w.NearestNPC()
	if math.Abs(d-1) > 1e-9 {
		t.Fatalf("distance = %v, want 1 (floor plane only)", d)
	}
}

func TestPushPlayerBack(t *testing.T) {
	w := testWorld(t)
	npc := &NPC{ID: "x", Pos: Vec3{X: 0, Y: 0.65, Z: 0}}

	w.Player.Pos = Vec3{X: 1, Y: 0.5, Z: 0}
	w.PushPlayerBack(npc)
	if got := w.Player.Pos; math.Abs(got.X-3) > 1e-9 || math.Abs(got.Z) > 1e-9 {
		t.Fatalf("pushed to (%v, %v), want (3, 0)", got.X, got.Z)
	}

	// Push destination outside the room is pulled back to the limit.
	far := &NPC{ID: "far", Pos: Vec3{X: 3.3, Y: 0.65, Z: 1}}
	w.Player.Pos = Vec3{X: 4.0, Y: 0.5, Z: 1}
	w.PushPlayerBack(far)
	if got := w.Player.Pos.X; got != w.RoomLimit {
		t.Fatalf("X = %v, want clamped to %v", got, w.RoomLimit)
	}

	// Standing exactly on the NPC falls back to pushing along +Z.
	w.Player.Pos = npc.Pos
	w.PushPlayerBack(npc)
	if got := w.Player.Pos.Z; math.Abs(got-3) > 1e-9 {
		t.Fatalf("degenerate push Z = %v, want 3", got)
	}
}

func TestCellForCenterAndClamp(t *testing.T) {
	w := testWorld(t)

	col, row := w.CellFor(Vec3{X: 0, Y: 0.5, Z: 0})
	if col != 10 || row != 6 {
		t.Fatalf("center cell = (%d, %d), want (10, 6)", col, row)
	}

	// Positions outside the room still land on interior cells.
	col, row = w.CellFor(Vec3{X: 99, Y: 0.5, Z: -99})
	if col != w.Map.Width-2 || row != 1 {
		t.Fatalf("clamped cell = (%d, %d), want (%d, 1)", col, row, w.Map.Width-2)
	}
}

func TestNPCPrompts(t *testing.T) {
	w := testWorld(t)
	var hr *NPC
	for _, n := range w.NPCs {
		if n.ID == "hr" {
			hr = n
		}
	}
	if hr == nil {
		t.Fatal("default world has no hr persona")
	}

	sys := hr.SystemPrompt()
	for _, want := range []string{
		"Interaction Framework:",
		"You are Sarah Chen, HR Director at Venture Builder AI. Core traits:",
		"- Warm and approachable",
		"Keep responses concise but meaningful (2-3 sentences)",
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	ins := hr.Instructions()
	if !strings.Contains(ins, "say exactly 'Hello there, I am Sarah Chen, HR Director at Venture Builder AI.'") {
		t.Errorf("instructions missing introduction line: %s", ins)
	}
	if !strings.Contains(ins, "respond naturally in a warm tone") {
		t.Errorf("instructions missing tone: %s", ins)
	}
}

func TestNewFillsDefaultGreeting(t *testing.T) {
	wc := config.DefaultWorld()
	wc.Personas[0].Greeting = ""
	w, err := New(wc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := "Hello there, I am Sarah Chen, HR Director at Venture Builder AI. How can I assist you today?"
	if got := w.NPCs[0].Greeting; got != want {
		t.Fatalf("greeting = %q, want %q", got, want)
	}
}
