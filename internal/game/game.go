// Package game is the terminal frontend: an animated menu, a walkable office
// rendered as ASCII, and the conversation panel. Input is line based, so it
// works over any plain terminal or pipe.
package game

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/venturebuilderai/officesim/internal/dialogue"
	"github.com/venturebuilderai/officesim/internal/world"
)

type gameState int

const (
	stateMenu gameState = iota
	statePlaying
	stateDialogue
)

// interactionCooldown keeps a finished conversation from instantly
// retriggering while the player walks away.
const interactionCooldown = 500 * time.Millisecond

// maxRepeat caps the optional count argument of movement commands.
const maxRepeat = 50

type Game struct {
	world *world.World
	mgr   *dialogue.Manager
	menu  *Menu
	log   *zap.Logger

	in  io.Reader
	out io.Writer
	now func() time.Time

	state      gameState
	npc        *world.NPC
	partial    string
	notice     string
	cooldownAt time.Time
}

// New wires the frontend. in and out default to the process streams in main;
// tests pass buffers. now may be nil for the wall clock.
func New(w *world.World, mgr *dialogue.Manager, in io.Reader, out io.Writer, now func() time.Time, log *zap.Logger) *Game {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Game{
		world: w,
		mgr:   mgr,
		menu:  NewMenu(w.Title, w.Subtitle, now),
		log:   log,
		in:    in,
		out:   out,
		now:   now,
		state: stateMenu,
	}
}

// Run drives the frontend until the player quits, input closes, or the
// context is cancelled.
func (g *Game) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(g.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	g.render()
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				g.shutdown()
				return nil
			}
			if quit := g.handleLine(strings.TrimSpace(line)); quit {
				g.shutdown()
				return nil
			}
			g.render()

		case ev := <-g.mgr.Events():
			g.handleEvent(ev)
			g.render()

		case <-ticker.C:
			// Only the menu animates on its own.
			if g.state == stateMenu {
				g.render()
			}
		}
	}
}

func (g *Game) shutdown() {
	if g.mgr.Active() {
		g.mgr.End()
	}
}

func (g *Game) handleLine(line string) bool {
	switch g.state {
	case stateMenu:
		if line == "/quit" || line == "quit" {
			return true
		}
		if line == "" && g.menu.Ready() {
			g.state = statePlaying
		}
		return false
	case statePlaying:
		return g.handlePlaying(line)
	case stateDialogue:
		return g.handleDialogue(line)
	}
	return false
}

func (g *Game) handlePlaying(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd := fields[0]
	count := 1
	if len(fields) > 1 {
		if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
			count = n
			if count > maxRepeat {
				count = maxRepeat
			}
		}
	}

	switch cmd {
	case "w", "a", "s", "d":
		var dx, dz float64
		switch cmd {
		case "w":
			dz = -1
		case "s":
			dz = 1
		case "a":
			dx = -1
		case "d":
			dx = 1
		}
		for i := 0; i < count; i++ {
			g.world.MovePlayer(dx, dz)
		}
		g.notice = ""
		g.checkProximity()
	case "q":
		g.world.TurnPlayer(-90 * float64(count))
		g.notice = ""
	case "e":
		g.world.TurnPlayer(90 * float64(count))
		g.notice = ""
	case "look":
		g.notice = g.describeSurroundings()
	case "quit", "/quit":
		return true
	default:
		g.notice = fmt.Sprintf("Unknown command %q. Move with w/a/s/d, turn with q/e.", cmd)
	}
	return false
}

func (g *Game) handleDialogue(line string) bool {
	switch {
	case line == "/exit":
		g.endDialogue()
	case line == "/voice":
		g.mgr.ToggleSpeech()
	case line == "/text":
		if g.mgr.State().SpeechMode {
			g.mgr.ToggleSpeech()
		}
	case line == "/quit":
		return true
	case line != "":
		g.mgr.SendText(line)
	}
	return false
}

func (g *Game) checkProximity() {
	if g.mgr.Active() || g.now().Before(g.cooldownAt) {
		return
	}
	npc := g.world.NPCInRange()
	if npc == nil {
		return
	}
	g.npc = npc
	g.partial = ""
	g.notice = ""
	g.state = stateDialogue
	g.mgr.Start(npc, g.world.Player.Pos)
}

func (g *Game) endDialogue() {
	if _, ok := g.mgr.End(); ok && g.npc != nil {
		g.world.PushPlayerBack(g.npc)
	}
	g.npc = nil
	g.partial = ""
	g.state = statePlaying
	g.cooldownAt = g.now().Add(interactionCooldown)
}

func (g *Game) describeSurroundings() string {
	npc, dist := g.world.NearestNPC()
	if npc == nil {
		return "Nobody is around."
	}
	return fmt.Sprintf("%s, %s, is %.1f units away.", npc.Name, npc.Role, dist)
}

func (g *Game) handleEvent(ev dialogue.Event) {
	switch ev.Kind {
	case dialogue.EventMessage:
		g.partial = ""
	case dialogue.EventPartial:
		g.partial = ev.Text
	case dialogue.EventMode:
		g.notice = "Input mode: " + ev.Text + "."
	case dialogue.EventListening:
		if ev.Text == "started" {
			g.notice = "Listening..."
		} else {
			g.notice = ""
		}
	case dialogue.EventSpeechUnavailable:
		g.notice = "Voice is unavailable right now; the conversation continues in text."
	case dialogue.EventEnded:
		if g.state == stateDialogue && !g.mgr.Active() {
			g.npc = nil
			g.partial = ""
			g.state = statePlaying
			g.cooldownAt = g.now().Add(interactionCooldown)
		}
	}
}

func (g *Game) render() {
	var sb strings.Builder
	sb.WriteString("\033[H\033[2J")

	switch g.state {
	case stateMenu:
		sb.WriteString(g.menu.Render())
	case statePlaying:
		sb.WriteString(RenderWorld(g.world))
		sb.WriteString(RenderStatus(g.world) + "\n")
		if g.notice != "" {
			sb.WriteString(g.notice + "\n")
		}
		sb.WriteString("Move with w/a/s/d [count], turn with q/e, look, quit.\n")
	case stateDialogue:
		sb.WriteString(RenderDialogue(g.mgr.State(), g.partial, 60))
		if g.notice != "" {
			sb.WriteString(g.notice + "\n")
		}
	}

	fmt.Fprint(g.out, sb.String())
}
