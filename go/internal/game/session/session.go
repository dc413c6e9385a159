package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/events"
	"github.com/diceboard/diceboard/go/internal/game/state"
)

// ErrDisconnected is returned by Run when the server closes the connection
var ErrDisconnected = errors.New("connection to room lost")

// Transport is the room connection as the session sees it
type Transport interface {
	Frames() <-chan string
	Send(text string)
	IsOpen() bool
}

// SnapshotRenderer displays snapshots
type SnapshotRenderer interface {
	Render(snap state.Snapshot)
}

// EventPublisher mirrors decoded events somewhere else. Publish must not block.
type EventPublisher interface {
	Publish(ev events.Event)
}

// CommandKind is a user action
type CommandKind int

const (
	CommandChat CommandKind = iota
	CommandReady
	CommandRoll
)

// Command is one user action queued for the event loop
type Command struct {
	Kind CommandKind
	Text string
}

// Session runs the single event loop that ties a room connection to the
// reconciler and the display
type Session struct {
	transport  Transport
	reconciler *state.Reconciler
	renderer   SnapshotRenderer
	publisher  EventPublisher

	commands chan Command
	latest   atomic.Pointer[state.Snapshot]
}

// Option configures a Session
type Option func(*Session)

// WithPublisher mirrors every decoded event to p
func WithPublisher(p EventPublisher) Option {
	return func(s *Session) {
		s.publisher = p
	}
}

// New creates a session
func New(transport Transport, reconciler *state.Reconciler, renderer SnapshotRenderer, opts ...Option) *Session {
	s := &Session{
		transport:  transport,
		reconciler: reconciler,
		renderer:   renderer,
		commands:   make(chan Command, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	snap := reconciler.Snapshot()
	s.latest.Store(&snap)
	return s
}

// Submit queues a user action. It blocks only while the queue is full or
// until ctx is done.
func (s *Session) Submit(ctx context.Context, cmd Command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the state as of the last handled event. Safe to call from
// any goroutine.
func (s *Session) Snapshot() state.Snapshot {
	return *s.latest.Load()
}

// Run processes frames and commands one at a time until ctx is cancelled or
// the connection drops
func (s *Session) Run(ctx context.Context) error {
	s.publish()

	frames := s.transport.Frames()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame, ok := <-frames:
			if !ok {
				log.Warn().Msg("room connection closed")
				return ErrDisconnected
			}
			s.handleFrame(frame)

		case cmd := <-s.commands:
			s.handleCommand(cmd)
		}
	}
}

func (s *Session) handleFrame(frame string) {
	ev := events.Decode(frame)

	log.Debug().
		Str("event_type", string(ev.Type())).
		Str("payload", ev.Raw()).
		Msg("frame received")

	res := s.reconciler.Apply(ev)
	for _, token := range res.Outbound {
		s.transport.Send(token)
	}

	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
	if res.Changed {
		s.publish()
	}
}

func (s *Session) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CommandReady:
		if !s.transport.IsOpen() {
			log.Warn().Msg("ready toggle dropped, websocket is not connected")
			return
		}
		token, ok := s.reconciler.ToggleReady()
		if !ok {
			log.Info().Msg("ready toggle is disabled while a game is running")
			return
		}
		s.transport.Send(token)
		s.publish()

	case CommandRoll:
		if !s.transport.IsOpen() {
			log.Warn().Msg("roll dropped, websocket is not connected")
			return
		}
		token, ok := s.reconciler.Roll()
		if !ok {
			log.Info().Msg("it is not your turn")
			return
		}
		s.transport.Send(token)

	case CommandChat:
		s.transport.Send(cmd.Text)
	}
}

// publish stores and renders the current snapshot
func (s *Session) publish() {
	snap := s.reconciler.Snapshot()
	s.renderer.Render(snap)
	s.latest.Store(&snap)
}
