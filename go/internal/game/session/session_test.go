package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/diceboard/diceboard/go/internal/game/events"
	"github.com/diceboard/diceboard/go/internal/game/state"
)

type fakeTransport struct {
	frames chan string

	mu   sync.Mutex
	sent []string
	open bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan string, 16), open: true}
}

func (f *fakeTransport) Frames() <-chan string { return f.frames }

func (f *fakeTransport) Send(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || text == "" {
		return
	}
	f.sent = append(f.sent, text)
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeTransport) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

func (f *fakeTransport) sentFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type countingRenderer struct {
	mu    sync.Mutex
	count int
	last  state.Snapshot
}

func (r *countingRenderer) Render(snap state.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.last = snap
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []events.EventType
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, ev.Type())
}

// harness runs a session in the background and lets a test wait for the
// loop to drain
type harness struct {
	t         *testing.T
	transport *fakeTransport
	session   *Session
	cancel    context.CancelFunc
	done      chan error
}

func startSession(t *testing.T, opts ...Option) (*harness, *countingRenderer) {
	t.Helper()
	transport := newFakeTransport()
	renderer := &countingRenderer{}
	rec := state.NewReconciler(state.Config{Self: "alice", BoardCells: 10})
	s := New(transport, rec, renderer, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, transport: transport, session: s, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return h, renderer
}

func (h *harness) frame(frames ...string) {
	for _, f := range frames {
		h.transport.frames <- f
	}
}

func (h *harness) command(cmd Command) {
	h.t.Helper()
	if err := h.session.Submit(context.Background(), cmd); err != nil {
		h.t.Fatal(err)
	}
}

// eventually polls cond until it holds
func (h *harness) eventually(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
}

func TestSessionAppliesFramesInOrder(t *testing.T) {
	h, renderer := startSession(t)

	h.frame("PLAYERLIST:alice,bob,", "READY_STATUS:alice:ready", "TURN_CHANGE:bob")
	h.eventually("turn change", func() bool { return h.session.Snapshot().Turn == "bob" })

	snap := h.session.Snapshot()
	if diff := cmp.Diff([]state.Player{{Name: "alice", Ready: true}, {Name: "bob"}}, snap.Roster); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
	if snap.Status != "bob's turn" {
		t.Errorf("status = %q", snap.Status)
	}

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if renderer.count != 4 {
		t.Errorf("rendered %d times; want initial + 3", renderer.count)
	}
}

func TestSessionReadyAndRoll(t *testing.T) {
	h, _ := startSession(t)

	h.command(Command{Kind: CommandRoll})
	h.command(Command{Kind: CommandReady})
	h.eventually("ready toggle", func() bool { return h.session.Snapshot().LocalReady })

	h.frame("GAME_START:alice")
	h.eventually("game start", func() bool { return h.session.Snapshot().CanRoll })
	h.command(Command{Kind: CommandReady})
	h.command(Command{Kind: CommandRoll})
	h.command(Command{Kind: CommandChat, Text: "gl hf"})
	h.eventually("chat sent", func() bool { return len(h.transport.sentFrames()) == 3 })

	want := []string{events.TokenReadyToggle, events.TokenRollDice, "gl hf"}
	if diff := cmp.Diff(want, h.transport.sentFrames()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionWinSendsReadyReset(t *testing.T) {
	h, _ := startSession(t)

	h.command(Command{Kind: CommandReady})
	h.eventually("ready toggle", func() bool { return h.session.Snapshot().LocalReady })
	h.frame("READY_STATUS:alice:ready", "GAME_START:bob", "WIN:bob")
	h.eventually("win", func() bool { return h.session.Snapshot().Winner == "bob" })

	want := []string{events.TokenReadyToggle, events.TokenReadyToggle}
	if diff := cmp.Diff(want, h.transport.sentFrames()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	snap := h.session.Snapshot()
	if snap.LocalReady || snap.CanRoll || !snap.CanToggleReady {
		t.Errorf("after win: ready %v roll %v toggle %v", snap.LocalReady, snap.CanRoll, snap.CanToggleReady)
	}
}

func TestSessionDropsActionsWhenClosed(t *testing.T) {
	h, _ := startSession(t)
	h.transport.setOpen(false)

	h.command(Command{Kind: CommandReady})
	h.command(Command{Kind: CommandChat, Text: "anyone?"})
	h.frame("ping")
	h.eventually("chat frame", func() bool { return len(h.session.Snapshot().Log) == 1 })

	if sent := h.transport.sentFrames(); len(sent) != 0 {
		t.Errorf("sent %v over a closed connection", sent)
	}
	if h.session.Snapshot().LocalReady {
		t.Error("ready flipped although the toggle was never sent")
	}
}

func TestSessionPublishesEvents(t *testing.T) {
	pub := &recordingPublisher{}
	h, _ := startSession(t, WithPublisher(pub))

	h.frame("PLAYERLIST:alice", "hello", "READY_STATUS:")
	h.eventually("three events", func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.types) == 3
	})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	want := []events.EventType{events.EventTypePlayerList, events.EventTypeChat, events.EventTypeReadyStatus}
	if diff := cmp.Diff(want, pub.types); diff != "" {
		t.Errorf("published mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionStopsWhenConnectionDrops(t *testing.T) {
	h, _ := startSession(t)
	close(h.transport.frames)

	select {
	case err := <-h.done:
		if !errors.Is(err, ErrDisconnected) {
			t.Errorf("Run() error = %v; want ErrDisconnected", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the connection dropped")
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	h, _ := startSession(t)
	h.cancel()

	select {
	case err := <-h.done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v; want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored cancellation")
	}
}
