package state

import (
	"fmt"
	"time"
)

// Player is one roster entry
type Player struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	// Position is nil until a positions frame places the player
	Position *int `json:"position,omitempty"`
}

// Marker is a player label rendered on a board cell
type Marker struct {
	Name string `json:"name"`
	Own  bool   `json:"own"`
}

// LogEntry is one line of the chat log
type LogEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Line formats the entry the way the chat log shows it
func (e LogEntry) Line() string {
	return fmt.Sprintf("[%s] %s", e.At.Format("15:04:05"), e.Text)
}

// PendingReady is a ready toggle that was sent but not yet echoed back by a
// ready-status frame
type PendingReady struct {
	Want  bool      `json:"want"`
	Since time.Time `json:"since"`
}

// State is the mutable game view owned by a Reconciler
type State struct {
	Roster         []Player
	Markers        map[int][]Marker
	Turn           string
	Winner         string
	LocalReady     bool
	CanRoll        bool
	CanToggleReady bool
	Pending        *PendingReady
	ReadyConflicts int
	// Log is newest first
	Log []LogEntry
}

func newState() State {
	return State{
		Markers:        make(map[int][]Marker),
		CanToggleReady: true,
	}
}

// Snapshot is an immutable copy of State handed to renderers
type Snapshot struct {
	Self           string           `json:"self"`
	BoardCells     int              `json:"board_cells"`
	Roster         []Player         `json:"roster"`
	Markers        map[int][]Marker `json:"markers"`
	Turn           string           `json:"turn,omitempty"`
	Winner         string           `json:"winner,omitempty"`
	Status         string           `json:"status"`
	LocalReady     bool             `json:"local_ready"`
	CanRoll        bool             `json:"can_roll"`
	CanToggleReady bool             `json:"can_toggle_ready"`
	Pending        *PendingReady    `json:"pending,omitempty"`
	ReadyConflicts int              `json:"ready_conflicts"`
	Log            []LogEntry       `json:"log"`
}

// IsYourTurn reports whether the current turn belongs to the local participant
func (s Snapshot) IsYourTurn() bool {
	return s.Winner == "" && s.Turn != "" && s.Turn == s.Self
}

// Player looks a roster entry up by name
func (s Snapshot) Player(name string) (Player, bool) {
	for _, p := range s.Roster {
		if p.Name == name {
			return p, true
		}
	}
	return Player{}, false
}

// statusLine mirrors the status line of the game screen
func (s Snapshot) statusLine() string {
	switch {
	case s.Winner != "":
		return "winner: " + s.Winner
	case s.Turn == "":
		return ""
	case s.IsYourTurn():
		return "YOUR TURN!"
	default:
		return s.Turn + "'s turn"
	}
}

func (s *State) snapshot(self string, boardCells int) Snapshot {
	snap := Snapshot{
		Self:           self,
		BoardCells:     boardCells,
		Turn:           s.Turn,
		Winner:         s.Winner,
		LocalReady:     s.LocalReady,
		CanRoll:        s.CanRoll,
		CanToggleReady: s.CanToggleReady,
		ReadyConflicts: s.ReadyConflicts,
		Roster:         make([]Player, len(s.Roster)),
		Markers:        make(map[int][]Marker, len(s.Markers)),
		Log:            make([]LogEntry, len(s.Log)),
	}

	for i, p := range s.Roster {
		if p.Position != nil {
			pos := *p.Position
			p.Position = &pos
		}
		snap.Roster[i] = p
	}
	for cell, markers := range s.Markers {
		snap.Markers[cell] = append([]Marker(nil), markers...)
	}
	copy(snap.Log, s.Log)
	if s.Pending != nil {
		pending := *s.Pending
		snap.Pending = &pending
	}
	snap.Status = snap.statusLine()
	return snap
}
