package state

import (
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/events"
)

// DefaultBoardCells is the number of cells on the standard board
const DefaultBoardCells = 40

// Config holds what the reconciler needs to know about the local participant
type Config struct {
	Self       string
	BoardCells int
	Clock      clockwork.Clock
}

// Result describes the side effects of applying one event
type Result struct {
	// Changed is false when the event was a no-op
	Changed bool
	// Outbound holds tokens the caller must send to the server
	Outbound []string
}

// Reconciler owns the game state and is the only thing that mutates it.
// It is not safe for concurrent use; the session loop serialises access.
type Reconciler struct {
	self       string
	boardCells int
	clock      clockwork.Clock
	state      State
}

// NewReconciler creates a reconciler for the given participant
func NewReconciler(cfg Config) *Reconciler {
	if cfg.BoardCells <= 0 {
		cfg.BoardCells = DefaultBoardCells
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Reconciler{
		self:       cfg.Self,
		boardCells: cfg.BoardCells,
		clock:      cfg.Clock,
		state:      newState(),
	}
}

// Snapshot returns an immutable copy of the current state
func (r *Reconciler) Snapshot() Snapshot {
	return r.state.snapshot(r.self, r.boardCells)
}

// Apply updates the state from one decoded frame
func (r *Reconciler) Apply(ev events.Event) Result {
	switch e := ev.(type) {
	case events.PlayerList:
		return r.applyPlayerList(e)
	case events.ReadyStatus:
		return r.applyReadyStatus(e)
	case events.PlayerPositions:
		return r.applyPositions(e)
	case events.GameStart:
		return r.applyGameStart(e)
	case events.DiceRoll:
		return r.applyDiceRoll(e)
	case events.TurnChange:
		return r.applyTurnChange(e)
	case events.Win:
		return r.applyWin(e)
	case events.Chat:
		r.appendLog(e.Text)
		return Result{Changed: true}
	default:
		panic(fmt.Sprintf("state: unhandled event %T", ev))
	}
}

func (r *Reconciler) applyPlayerList(e events.PlayerList) Result {
	roster := make([]Player, 0, len(e.Names))
	for _, name := range e.Names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		roster = append(roster, Player{Name: name})
	}
	r.state.Roster = roster
	return Result{Changed: true}
}

func (r *Reconciler) applyReadyStatus(e events.ReadyStatus) Result {
	if e.Payload == "" {
		return Result{}
	}

	for _, entry := range e.Entries {
		for i := range r.state.Roster {
			if r.state.Roster[i].Name == entry.Name {
				r.state.Roster[i].Ready = entry.Ready
			}
		}
		if entry.Name == r.self {
			r.confirmReady(entry.Ready)
		}
	}
	return Result{Changed: true}
}

// confirmReady makes the server's readiness for the local participant
// authoritative and settles any pending toggle
func (r *Reconciler) confirmReady(ready bool) {
	if p := r.state.Pending; p != nil {
		if p.Want != ready {
			r.state.ReadyConflicts++
			log.Warn().
				Str("username", r.self).
				Bool("wanted", p.Want).
				Bool("server", ready).
				Dur("pending_for", r.clock.Since(p.Since)).
				Msg("server readiness differs from local toggle")
		}
		r.state.Pending = nil
	}
	r.state.LocalReady = ready
}

func (r *Reconciler) applyPositions(e events.PlayerPositions) Result {
	if e.Payload == "" {
		return Result{}
	}

	r.state.Markers = make(map[int][]Marker)
	for i := range r.state.Roster {
		r.state.Roster[i].Position = nil
	}

	for _, entry := range e.Entries {
		if entry.Cell < 0 || entry.Cell >= r.boardCells {
			log.Debug().
				Str("player", entry.Name).
				Int("cell", entry.Cell).
				Msg("dropping marker for missing cell")
			continue
		}
		r.state.Markers[entry.Cell] = append(r.state.Markers[entry.Cell], Marker{
			Name: entry.Name,
			Own:  entry.Name == r.self,
		})
		for i := range r.state.Roster {
			if r.state.Roster[i].Name == entry.Name {
				cell := entry.Cell
				r.state.Roster[i].Position = &cell
			}
		}
	}
	return Result{Changed: true}
}

func (r *Reconciler) applyGameStart(e events.GameStart) Result {
	if e.FirstPlayer == "" {
		return Result{}
	}
	r.state.Winner = ""
	r.setTurn(e.FirstPlayer)
	r.state.CanToggleReady = false
	return Result{Changed: true}
}

func (r *Reconciler) applyTurnChange(e events.TurnChange) Result {
	if e.NextPlayer == "" {
		return Result{}
	}
	if r.state.Winner != "" {
		log.Debug().
			Str("next_player", e.NextPlayer).
			Str("winner", r.state.Winner).
			Msg("ignoring turn change after game over")
		return Result{}
	}
	r.setTurn(e.NextPlayer)
	return Result{Changed: true}
}

func (r *Reconciler) setTurn(name string) {
	r.state.Turn = name
	r.state.CanRoll = name == r.self
}

func (r *Reconciler) applyDiceRoll(e events.DiceRoll) Result {
	if !e.Valid {
		return Result{}
	}
	r.appendLog(fmt.Sprintf("%s rolled a %s!", e.Player, e.Result))
	return Result{Changed: true}
}

func (r *Reconciler) applyWin(e events.Win) Result {
	if e.Winner == "" {
		return Result{}
	}

	var res Result
	res.Changed = true

	r.state.Winner = e.Winner
	r.state.CanToggleReady = true
	r.state.CanRoll = false

	if r.state.LocalReady {
		r.state.LocalReady = false
		r.state.Pending = &PendingReady{Want: false, Since: r.clock.Now()}
		res.Outbound = append(res.Outbound, events.TokenReadyToggle)
	}
	return res
}

func (r *Reconciler) appendLog(text string) {
	entry := LogEntry{At: r.clock.Now(), Text: text}
	r.state.Log = append([]LogEntry{entry}, r.state.Log...)
}

// ToggleReady flips the local ready flag optimistically and returns the token
// to send. ok is false when toggling is currently not allowed.
func (r *Reconciler) ToggleReady() (token string, ok bool) {
	if !r.state.CanToggleReady {
		return "", false
	}
	r.state.LocalReady = !r.state.LocalReady
	r.state.Pending = &PendingReady{Want: r.state.LocalReady, Since: r.clock.Now()}
	return events.TokenReadyToggle, true
}

// Roll returns the token to send for a dice roll. ok is false when it is
// not the local participant's turn.
func (r *Reconciler) Roll() (token string, ok bool) {
	if !r.state.CanRoll {
		return "", false
	}
	return events.TokenRollDice, true
}
