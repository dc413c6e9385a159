package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/events"
)

// JetStreamConfig holds configuration for the frame relay
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration // Window for duplicate detection
	PublishTimeout  time.Duration
	// CloseTimeout bounds how long Close waits for queued events
	CloseTimeout time.Duration
	QueueSize    int
}

// DefaultJetStreamConfig returns default relay configuration
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "ROOM_FRAMES",
		SubjectPrefix:   "diceboard.rooms",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		PublishTimeout:  5 * time.Second,
		CloseTimeout:    3 * time.Second,
		QueueSize:       256,
	}
}

// Envelope is the JSON body of every relayed message
type Envelope struct {
	EventID   string           `json:"eventId"`
	EventType events.EventType `json:"eventType"`
	RoomID    string           `json:"roomId"`
	Username  string           `json:"username"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   string           `json:"payload"`
	Frame     string           `json:"frame"`
}

// NewEnvelope wraps a decoded event for publishing
func NewEnvelope(roomID, username string, ev events.Event, at time.Time) Envelope {
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: ev.Type(),
		RoomID:    roomID,
		Username:  username,
		Timestamp: at.UTC(),
		Payload:   ev.Raw(),
		Frame:     events.Encode(ev),
	}
}

// Subject returns the subject an envelope is published on
func Subject(prefix string, env Envelope) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(env.RoomID), env.EventType)
}

// subjectToken makes s safe to use as a single subject token
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// JetStreamPublisher mirrors room events into a JetStream stream. Publishing
// is asynchronous so the game loop never waits on NATS.
type JetStreamPublisher struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	config   JetStreamConfig
	roomID   string
	username string

	queue chan Envelope
	done  chan struct{}

	// ctx is cancelled when Close gives up on the queue
	ctx    context.Context
	cancel context.CancelFunc
}

// NewJetStreamPublisher connects to NATS and makes sure the stream exists
func NewJetStreamPublisher(cfg JetStreamConfig, roomID, username string) (*JetStreamPublisher, error) {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultJetStreamConfig().CloseTimeout
	}

	opts := []nats.Option{
		nats.Name("diceboard-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	p := &JetStreamPublisher{
		nc:       nc,
		js:       js,
		config:   cfg,
		roomID:   roomID,
		username: username,
		queue:    make(chan Envelope, max(cfg.QueueSize, 1)),
		done:     make(chan struct{}),
		ctx:      runCtx,
		cancel:   runCancel,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PublishTimeout)
	defer cancel()
	if err := p.ensureStream(ctx); err != nil {
		runCancel()
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	go p.run()
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Frames received from diceboard rooms",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  p.config.DuplicateWindow,
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().
		Str("stream", p.config.StreamName).
		Msg("JetStream stream ready")
	return nil
}

// Publish queues ev for the relay. A full queue drops the event.
func (p *JetStreamPublisher) Publish(ev events.Event) {
	env := NewEnvelope(p.roomID, p.username, ev, time.Now())
	select {
	case p.queue <- env:
	default:
		log.Warn().
			Str("room_id", p.roomID).
			Str("event_type", string(env.EventType)).
			Msg("relay queue full, dropping event")
	}
}

func (p *JetStreamPublisher) run() {
	defer close(p.done)

	dropped := 0
	for env := range p.queue {
		if p.ctx.Err() != nil {
			dropped++
			continue
		}
		ctx, cancel := context.WithTimeout(p.ctx, p.config.PublishTimeout)
		if _, err := p.publish(ctx, env); err != nil {
			log.Error().
				Err(err).
				Str("event_id", env.EventID).
				Str("event_type", string(env.EventType)).
				Msg("failed to relay event")
		}
		cancel()
	}

	if dropped > 0 {
		log.Warn().
			Int("dropped", dropped).
			Str("room_id", p.roomID).
			Msg("relay closed with events still queued")
	}
}

func (p *JetStreamPublisher) publish(ctx context.Context, env Envelope) (*jetstream.PubAck, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	subject := Subject(p.config.SubjectPrefix, env)
	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(env.EventType)},
			"Room-ID":    []string{env.RoomID},
			"Event-ID":   []string{env.EventID},
		},
	},
		jetstream.WithMsgID(env.EventID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return nil, fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", env.EventID).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("relayed event")
	return ack, nil
}

// Close flushes queued events and disconnects. Events still queued after
// CloseTimeout are dropped. Publish must not be called after Close.
func (p *JetStreamPublisher) Close() error {
	close(p.queue)

	timer := time.NewTimer(p.config.CloseTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		// abort the publish in flight and skip the rest
		p.cancel()
		<-p.done
	}
	p.cancel()

	if !p.nc.IsConnected() {
		p.nc.Close()
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
