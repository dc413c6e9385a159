package render

import (
	"maps"
	"slices"
	"sync"

	"github.com/diceboard/diceboard/go/internal/game/state"
)

// Actions is the enabled/disabled state of the player's controls
type Actions struct {
	CanRoll        bool
	CanToggleReady bool
	// LocalReady drives the ready button's label
	LocalReady bool
	// Unconfirmed is true while a ready toggle waits for the server's echo
	Unconfirmed bool
}

// Sink is a display surface
type Sink interface {
	ReplaceRoster(players []state.Player)
	MarkCells(markers map[int][]state.Marker)
	SetStatus(text string)
	SetActions(actions Actions)
	AppendLog(entry state.LogEntry)
	SetTimer(text string)
}

// Renderer pushes snapshots into a sink, touching only what changed since
// the previous snapshot
type Renderer struct {
	sink Sink

	mu   sync.Mutex
	prev *state.Snapshot
}

// NewRenderer creates a renderer for sink
func NewRenderer(sink Sink) *Renderer {
	return &Renderer{sink: sink}
}

// Render applies snap to the sink
func (r *Renderer) Render(snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.prev == nil
	prev := r.prev
	if first {
		prev = &state.Snapshot{}
	}

	if first || !slices.EqualFunc(prev.Roster, snap.Roster, samePlayer) {
		r.sink.ReplaceRoster(snap.Roster)
	}
	if first || !maps.EqualFunc(prev.Markers, snap.Markers, slices.Equal[[]state.Marker]) {
		r.sink.MarkCells(snap.Markers)
	}
	if first || prev.Status != snap.Status {
		r.sink.SetStatus(snap.Status)
	}
	if actions := actionsOf(snap); first || actions != actionsOf(*prev) {
		r.sink.SetActions(actions)
	}

	// the log only ever grows at the front
	if added := len(snap.Log) - len(prev.Log); added > 0 {
		for i := added - 1; i >= 0; i-- {
			r.sink.AppendLog(snap.Log[i])
		}
	}

	r.prev = &snap
}

// SetTimer forwards a countdown readout
func (r *Renderer) SetTimer(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink.SetTimer(text)
}

func actionsOf(s state.Snapshot) Actions {
	return Actions{
		CanRoll:        s.CanRoll,
		CanToggleReady: s.CanToggleReady,
		LocalReady:     s.LocalReady,
		Unconfirmed:    s.Pending != nil,
	}
}

func samePlayer(a, b state.Player) bool {
	if a.Name != b.Name || a.Ready != b.Ready {
		return false
	}
	if a.Position == nil || b.Position == nil {
		return a.Position == b.Position
	}
	return *a.Position == *b.Position
}
