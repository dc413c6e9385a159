package render

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/diceboard/diceboard/go/internal/game/state"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiBlue  = "\033[34m"
	ansiAmber = "\033[33m"

	clearLine = "\r\033[K"
)

// Terminal writes display updates as lines of text. On a TTY the countdown
// is kept as a live bottom line redrawn in place.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	live  bool
	timer string
}

// NewTerminal creates a terminal sink. Colors are used when out is a TTY.
func NewTerminal(out io.Writer) *Terminal {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Terminal{out: out, color: tty, live: tty}
}

// NewPlainTerminal creates a terminal sink that never writes colors
func NewPlainTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) paint(text string, codes ...string) string {
	if !t.color || len(codes) == 0 {
		return text
	}
	return strings.Join(codes, "") + text + ansiReset
}

func (t *Terminal) println(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.live {
		fmt.Fprintf(t.out, "\r"+format+"\n", args...)
		return
	}
	fmt.Fprintf(t.out, clearLine+format+"\n", args...)
	if t.timer != "" {
		t.drawTimer()
	}
}

// drawTimer rewrites the live countdown line. Callers hold mu.
func (t *Terminal) drawTimer() {
	fmt.Fprintf(t.out, clearLine+"session expires in %s", t.timer)
}

// ReplaceRoster redraws the player list
func (t *Terminal) ReplaceRoster(players []state.Player) {
	names := make([]string, 0, len(players))
	for _, p := range players {
		if p.Ready {
			names = append(names, t.paint(p.Name+"(ready)", ansiGreen, ansiBold))
		} else {
			names = append(names, p.Name)
		}
	}
	t.println("players: %s", strings.Join(names, ", "))
}

// MarkCells redraws the occupied board cells
func (t *Terminal) MarkCells(markers map[int][]state.Marker) {
	cells := make([]int, 0, len(markers))
	for cell := range markers {
		cells = append(cells, cell)
	}
	slices.Sort(cells)

	parts := make([]string, 0, len(cells))
	for _, cell := range cells {
		labels := make([]string, 0, len(markers[cell]))
		for _, m := range markers[cell] {
			if m.Own {
				labels = append(labels, t.paint("*"+m.Name, ansiBlue, ansiBold))
			} else {
				labels = append(labels, t.paint(m.Name, ansiRed, ansiBold))
			}
		}
		parts = append(parts, fmt.Sprintf("[%d: %s]", cell, strings.Join(labels, " ")))
	}
	if len(parts) == 0 {
		t.println("board: empty")
		return
	}
	t.println("board: %s", strings.Join(parts, " "))
}

// SetStatus shows the status line
func (t *Terminal) SetStatus(text string) {
	if text == "" {
		return
	}
	switch {
	case text == "YOUR TURN!":
		text = t.paint(text, ansiGreen, ansiBold)
	case strings.HasPrefix(text, "winner: "):
		text = t.paint(text, ansiBold)
	default:
		text = t.paint(text, ansiAmber)
	}
	t.println("status: %s", text)
}

// SetActions shows which commands are available
func (t *Terminal) SetActions(a Actions) {
	var parts []string
	if a.CanRoll {
		parts = append(parts, "/roll")
	}
	if a.CanToggleReady {
		label := "/ready"
		if a.LocalReady {
			label = "/ready (you are ready)"
		}
		if a.Unconfirmed {
			label += " [unconfirmed]"
		}
		parts = append(parts, label)
	}
	if len(parts) == 0 {
		t.println("actions: chat only")
		return
	}
	t.println("actions: %s", strings.Join(parts, ", "))
}

// AppendLog prints one chat log line
func (t *Terminal) AppendLog(entry state.LogEntry) {
	t.println("%s", entry.Line())
}

// SetTimer shows the token countdown. A live terminal redraws every readout
// in place; otherwise only the first readout and whole minutes are printed.
func (t *Terminal) SetTimer(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	first := t.timer == ""
	if text == t.timer {
		return
	}
	t.timer = text

	if t.live {
		t.drawTimer()
		return
	}
	if first || strings.HasSuffix(text, ":00") {
		fmt.Fprintf(t.out, "\rsession expires in %s\n", text)
	}
}
