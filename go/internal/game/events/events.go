package events

// EventType represents the kind of a frame received from the room server
type EventType string

const (
	EventTypePlayerList  EventType = "PlayerList"
	EventTypeReadyStatus EventType = "ReadyStatus"
	EventTypePositions   EventType = "PlayerPositions"
	EventTypeGameStart   EventType = "GameStart"
	EventTypeDiceRoll    EventType = "DiceRoll"
	EventTypeTurnChange  EventType = "TurnChange"
	EventTypeWin         EventType = "Win"
	EventTypeChat        EventType = "Chat"
)

// Outbound tokens understood by the room server
const (
	TokenReadyToggle = "READY_TOGGLE"
	TokenRollDice    = "ROLL_DICE"
)

// Event is a decoded frame. The set of implementations is closed; anything
// the decoder does not recognise becomes a Chat.
type Event interface {
	Type() EventType
	// Raw returns the payload exactly as it followed the prefix (or the whole
	// frame for chat).
	Raw() string
	sealed()
}

// ReadyEntry is one name:status pair of a ready-status frame
type ReadyEntry struct {
	Name  string
	Ready bool
}

// PositionEntry is one name:cell pair of a positions frame
type PositionEntry struct {
	Name string
	Cell int
}

// PlayerList replaces the whole roster
type PlayerList struct {
	Names   []string
	Payload string
}

// ReadyStatus carries readiness for some (not necessarily all) players
type ReadyStatus struct {
	Entries []ReadyEntry
	Payload string
}

// PlayerPositions replaces every marker on the board
type PlayerPositions struct {
	Entries []PositionEntry
	Payload string
}

// GameStart names the player who moves first
type GameStart struct {
	FirstPlayer string
	Payload     string
}

// DiceRoll reports a roll result. Valid is false when the payload had no
// name:result shape.
type DiceRoll struct {
	Player  string
	Result  string
	Valid   bool
	Payload string
}

// TurnChange names the player whose turn it is now
type TurnChange struct {
	NextPlayer string
	Payload    string
}

// Win names the winner
type Win struct {
	Winner  string
	Payload string
}

// Chat is free text, and the fallback for every unknown frame
type Chat struct {
	Text string
}

func (PlayerList) Type() EventType      { return EventTypePlayerList }
func (ReadyStatus) Type() EventType     { return EventTypeReadyStatus }
func (PlayerPositions) Type() EventType { return EventTypePositions }
func (GameStart) Type() EventType       { return EventTypeGameStart }
func (DiceRoll) Type() EventType        { return EventTypeDiceRoll }
func (TurnChange) Type() EventType      { return EventTypeTurnChange }
func (Win) Type() EventType             { return EventTypeWin }
func (Chat) Type() EventType            { return EventTypeChat }

func (e PlayerList) Raw() string      { return e.Payload }
func (e ReadyStatus) Raw() string     { return e.Payload }
func (e PlayerPositions) Raw() string { return e.Payload }
func (e GameStart) Raw() string       { return e.Payload }
func (e DiceRoll) Raw() string        { return e.Payload }
func (e TurnChange) Raw() string      { return e.Payload }
func (e Win) Raw() string             { return e.Payload }
func (e Chat) Raw() string            { return e.Text }

func (PlayerList) sealed()      {}
func (ReadyStatus) sealed()     {}
func (PlayerPositions) sealed() {}
func (GameStart) sealed()       {}
func (DiceRoll) sealed()        {}
func (TurnChange) sealed()      {}
func (Win) sealed()             {}
func (Chat) sealed()            {}
