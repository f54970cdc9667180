package game

import (
	"strings"
	"time"
)

// typeRate is the intro's typing speed in characters per second.
const typeRate = 15

// Menu is the animated title screen. The title and subtitle type out at a
// fixed rate; input is accepted once everything is visible.
type Menu struct {
	title    string
	subtitle string
	started  time.Time
	now      func() time.Time
}

// NewMenu starts the intro animation. now may be nil for the wall clock.
func NewMenu(title, subtitle string, now func() time.Time) *Menu {
	if now == nil {
		now = time.Now
	}
	return &Menu{title: title, subtitle: subtitle, started: now(), now: now}
}

func (m *Menu) visible() int {
	elapsed := m.now().Sub(m.started)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed.Seconds() * typeRate)
}

// Ready reports whether the animation finished and ENTER starts the game.
func (m *Menu) Ready() bool {
	return m.visible() >= len(m.title)+len(m.subtitle)
}

// Render returns the menu screen in its current animation state.
func (m *Menu) Render() string {
	n := m.visible()
	title := m.title
	if n < len(title) {
		title = title[:n]
	}
	subtitle := ""
	if rest := n - len(m.title); rest > 0 {
		subtitle = m.subtitle
		if rest < len(subtitle) {
			subtitle = subtitle[:rest]
		}
	}

	var sb strings.Builder
	sb.WriteString("\n  " + title + "\n")
	if subtitle != "" {
		sb.WriteString("  " + subtitle + "\n")
	}
	if m.Ready() {
		sb.WriteString("\n  Press ENTER to clock in.\n")
	}
	return sb.String()
}
