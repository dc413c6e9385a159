package events

import (
	"strconv"
	"strings"
)

// Frame prefixes in the order they are tested
const (
	PrefixPlayerList  = "PLAYERLIST:"
	PrefixReadyStatus = "READY_STATUS:"
	PrefixPositions   = "PLAYER_POSITIONS:"
	PrefixGameStart   = "GAME_START:"
	PrefixDiceRoll    = "DICE_ROLL:"
	PrefixTurnChange  = "TURN_CHANGE:"
	PrefixWin         = "WIN:"
)

type route struct {
	prefix string
	decode func(payload string) Event
}

var routes = []route{
	{PrefixPlayerList, decodePlayerList},
	{PrefixReadyStatus, decodeReadyStatus},
	{PrefixPositions, decodePositions},
	{PrefixGameStart, func(p string) Event { return GameStart{FirstPlayer: p, Payload: p} }},
	{PrefixDiceRoll, decodeDiceRoll},
	{PrefixTurnChange, func(p string) Event { return TurnChange{NextPlayer: p, Payload: p} }},
	{PrefixWin, func(p string) Event { return Win{Winner: p, Payload: p} }},
}

// Decode classifies a frame by its prefix and parses the payload. It never
// fails: frames without a known prefix come back as Chat.
func Decode(frame string) Event {
	for _, r := range routes {
		if payload, ok := strings.CutPrefix(frame, r.prefix); ok {
			return r.decode(payload)
		}
	}
	return Chat{Text: frame}
}

// Encode renders an event back to its wire form
func Encode(e Event) string {
	switch e.(type) {
	case PlayerList:
		return PrefixPlayerList + e.Raw()
	case ReadyStatus:
		return PrefixReadyStatus + e.Raw()
	case PlayerPositions:
		return PrefixPositions + e.Raw()
	case GameStart:
		return PrefixGameStart + e.Raw()
	case DiceRoll:
		return PrefixDiceRoll + e.Raw()
	case TurnChange:
		return PrefixTurnChange + e.Raw()
	case Win:
		return PrefixWin + e.Raw()
	default:
		return e.Raw()
	}
}

func decodePlayerList(payload string) Event {
	var names []string
	for _, name := range strings.Split(payload, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return PlayerList{Names: names, Payload: payload}
}

func decodeReadyStatus(payload string) Event {
	ev := ReadyStatus{Payload: payload}
	if payload == "" {
		return ev
	}
	for _, pair := range strings.Split(payload, ",") {
		name, status := splitPair(pair)
		ev.Entries = append(ev.Entries, ReadyEntry{Name: name, Ready: status == "ready"})
	}
	return ev
}

func decodePositions(payload string) Event {
	ev := PlayerPositions{Payload: payload}
	if payload == "" {
		return ev
	}
	for _, pair := range strings.Split(payload, ",") {
		name, cell := splitPair(pair)
		idx, ok := parseCell(cell)
		if !ok {
			continue
		}
		ev.Entries = append(ev.Entries, PositionEntry{Name: name, Cell: idx})
	}
	return ev
}

func decodeDiceRoll(payload string) Event {
	name, result, ok := strings.Cut(payload, ":")
	if ok {
		// only the first two fields count
		result, _, _ = strings.Cut(result, ":")
	}
	return DiceRoll{Player: name, Result: result, Valid: ok && name != "", Payload: payload}
}

// splitPair returns the first two colon-separated fields of s
func splitPair(s string) (string, string) {
	first, rest, _ := strings.Cut(s, ":")
	second, _, _ := strings.Cut(rest, ":")
	return first, second
}

// parseCell reads the leading integer of s. Trailing garbage is ignored and
// a missing number fails.
func parseCell(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
