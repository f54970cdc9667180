package game

import (
	"fmt"
	"strings"

	"github.com/venturebuilderai/officesim/internal/dialogue"
	"github.com/venturebuilderai/officesim/internal/world"
)

// RenderWorld draws the office map with the player (@) and each NPC (first
// letter of their name) projected onto interior cells. Spawn markers in the
// map source are rendered as floor.
func RenderWorld(w *world.World) string {
	rows := make([][]byte, w.Map.Height)
	for i, row := range w.Map.Rows {
		line := []byte(row)
		for j, b := range line {
			if b != 'W' {
				line[j] = '.'
			}
		}
		rows[i] = line
	}

	for _, npc := range w.NPCs {
		col, row := w.CellFor(npc.Pos)
		rows[row][col] = npc.Name[0]
	}
	col, row := w.CellFor(w.Player.Pos)
	rows[row][col] = '@'

	var sb strings.Builder
	for _, line := range rows {
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// compass maps a clockwise yaw in degrees to the nearest cardinal direction.
func compass(yaw float64) string {
	switch {
	case yaw >= 315 || yaw < 45:
		return "north"
	case yaw < 135:
		return "east"
	case yaw < 225:
		return "south"
	default:
		return "west"
	}
}

// RenderStatus is the one-line player readout under the map.
func RenderStatus(w *world.World) string {
	p := w.Player
	return fmt.Sprintf("You are at (%.1f, %.1f), facing %s.", p.Pos.X, p.Pos.Z, compass(p.Yaw))
}

// RenderDialogue draws the conversation panel: who is talking, the current
// NPC message (or the transcript streaming in), and the input hints.
func RenderDialogue(st dialogue.State, partial string, width int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== %s, %s ===\n\n", st.NPCName, st.NPCRole))

	body := st.Message
	if partial != "" {
		body = partial
	}
	if body != "" {
		for _, line := range wrap(body, width) {
			sb.WriteString("  " + line + "\n")
		}
	}
	sb.WriteString("\n")

	mode := "text"
	if st.SpeechMode {
		mode = "voice"
	}
	status := "[" + mode + "]"
	if st.SpeechActive {
		status += " listening"
	} else if st.Responding {
		status += " responding"
	}
	sb.WriteString(status + "\n")
	sb.WriteString("Type to talk. /voice toggles speech, /exit leaves, /quit exits.\n")
	return sb.String()
}

// wrap word-wraps text to the given width. Words longer than the width get
// their own line.
func wrap(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
