package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeRoutesByPrefix(t *testing.T) {
	tests := []struct {
		frame string
		want  EventType
	}{
		{"PLAYERLIST:alice,bob", EventTypePlayerList},
		{"READY_STATUS:alice:ready", EventTypeReadyStatus},
		{"PLAYER_POSITIONS:alice:0", EventTypePositions},
		{"GAME_START:alice", EventTypeGameStart},
		{"DICE_ROLL:alice:4", EventTypeDiceRoll},
		{"TURN_CHANGE:bob", EventTypeTurnChange},
		{"WIN:bob", EventTypeWin},
		{" alice: hello", EventTypeChat},
		{"playerlist:lowercase is chat", EventTypeChat},
		{"", EventTypeChat},
		{"WIN", EventTypeChat},
	}

	for _, tt := range tests {
		t.Run(tt.frame, func(t *testing.T) {
			got := Decode(tt.frame)
			if got.Type() != tt.want {
				t.Errorf("Decode(%q).Type() = %s; want %s", tt.frame, got.Type(), tt.want)
			}
		})
	}
}

func TestDecodeChatKeepsWholeFrame(t *testing.T) {
	frame := " bob joined the room"
	chat, ok := Decode(frame).(Chat)
	if !ok {
		t.Fatalf("Decode(%q) is not Chat", frame)
	}
	if chat.Text != frame {
		t.Errorf("chat text = %q; want %q", chat.Text, frame)
	}
}

func TestDecodePlayerListDropsBlanks(t *testing.T) {
	got := Decode("PLAYERLIST:alice, bob ,,  ,").(PlayerList)
	if diff := cmp.Diff([]string{"alice", "bob"}, got.Names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeReadyStatus(t *testing.T) {
	got := Decode("READY_STATUS:alice:ready,bob:notready,carol").(ReadyStatus)
	want := []ReadyEntry{
		{Name: "alice", Ready: true},
		{Name: "bob", Ready: false},
		{Name: "carol", Ready: false},
	}
	if diff := cmp.Diff(want, got.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	empty := Decode("READY_STATUS:").(ReadyStatus)
	if len(empty.Entries) != 0 {
		t.Errorf("empty payload produced %d entries", len(empty.Entries))
	}
}

func TestDecodePositionsDropsUnparsableCells(t *testing.T) {
	got := Decode("PLAYER_POSITIONS:alice:0,bob:2x,carol:,dave:abc,erin:-1").(PlayerPositions)
	want := []PositionEntry{
		{Name: "alice", Cell: 0},
		{Name: "bob", Cell: 2},
		{Name: "erin", Cell: -1},
	}
	if diff := cmp.Diff(want, got.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDiceRoll(t *testing.T) {
	tests := []struct {
		frame string
		want  DiceRoll
	}{
		{"DICE_ROLL:alice:6", DiceRoll{Player: "alice", Result: "6", Valid: true, Payload: "alice:6"}},
		{"DICE_ROLL:alice", DiceRoll{Player: "alice", Valid: false, Payload: "alice"}},
		{"DICE_ROLL:", DiceRoll{Valid: false}},
	}
	for _, tt := range tests {
		got := Decode(tt.frame).(DiceRoll)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.frame, diff)
		}
	}
}

func TestEncodeRoundTripsPrefix(t *testing.T) {
	frames := []string{
		"PLAYERLIST:alice,bob,",
		"READY_STATUS:alice:ready",
		"PLAYER_POSITIONS:alice:0,bob:2",
		"GAME_START:alice",
		"DICE_ROLL:alice:3",
		"TURN_CHANGE:bob",
		"WIN:bob",
		"just chatting",
	}
	for _, frame := range frames {
		if got := Encode(Decode(frame)); got != frame {
			t.Errorf("Encode(Decode(%q)) = %q", frame, got)
		}
	}
}
