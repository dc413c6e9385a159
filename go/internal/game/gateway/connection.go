package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Reasons a frame was not sent
var (
	ErrNotConnected = errors.New("websocket is not connected")
	ErrEmptyMessage = errors.New("empty message")
	ErrQueueFull    = errors.New("send queue full")
)

// ConnectionConfig holds configuration for the room WebSocket connection
type ConnectionConfig struct {
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendQueueSize    int
	FrameQueueSize   int
	// Jar supplies cookies for the upgrade request. Optional.
	Jar http.CookieJar
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		SendQueueSize:    64,
		FrameQueueSize:   256,
	}
}

// Endpoint identifies the room connection
type Endpoint struct {
	// BaseURL is the origin the game page would have been served from,
	// e.g. https://play.example.com
	BaseURL  string
	RoomID   string
	Username string
}

// URL builds the WebSocket URL for the endpoint. The scheme is wss when the
// base URL is https and ws otherwise.
func (e Endpoint) URL() (*url.URL, error) {
	base, err := url.Parse(e.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", e.BaseURL)
	}
	if e.RoomID == "" || e.Username == "" {
		return nil, errors.New("room id and username are required")
	}

	scheme := "ws"
	if strings.EqualFold(base.Scheme, "https") || strings.EqualFold(base.Scheme, "wss") {
		scheme = "wss"
	}

	return &url.URL{
		Scheme:  scheme,
		Host:    base.Host,
		Path:    "/ws/" + e.RoomID + "/" + e.Username,
		RawPath: "/ws/" + url.PathEscape(e.RoomID) + "/" + url.PathEscape(e.Username),
	}, nil
}

// Connection is the single client connection to a room
type Connection struct {
	ID       string
	Endpoint Endpoint

	conn   *websocket.Conn
	config ConnectionConfig
	send   chan string
	frames chan string

	mu     sync.RWMutex
	open   bool
	done   chan struct{}
	closed sync.Once

	ConnectedAt time.Time
}

// Dial opens the WebSocket connection and starts the read and write pumps
func Dial(ctx context.Context, endpoint Endpoint, config ConnectionConfig) (*Connection, error) {
	u, err := endpoint.URL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
		ReadBufferSize:   config.ReadBufferSize,
		WriteBufferSize:  config.WriteBufferSize,
		Jar:              config.Jar,
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Endpoint:    endpoint,
		conn:        conn,
		config:      config,
		send:        make(chan string, max(config.SendQueueSize, 1)),
		frames:      make(chan string, max(config.FrameQueueSize, 1)),
		open:        true,
		done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", endpoint.RoomID).
		Str("username", endpoint.Username).
		Str("url", u.String()).
		Msg("WebSocket connection established")

	return c, nil
}

// Frames delivers every received text frame in receipt order. The channel is
// closed once the connection drops.
func (c *Connection) Frames() <-chan string {
	return c.frames
}

// Done is closed when the connection has been torn down
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// IsOpen reports whether the connection currently accepts sends
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Send queues text for the server. Empty text and a closed connection are
// logged and dropped; there is no error for the caller to handle.
func (c *Connection) Send(text string) {
	if err := c.TrySend(text); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("message not sent")
	}
}

// TrySend is Send with the drop reason returned
func (c *Connection) TrySend(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return ErrNotConnected
	}

	select {
	case c.send <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Connection) Close() error {
	c.shutdown()
	return nil
}

func (c *Connection) shutdown() {
	c.closed.Do(func() {
		c.mu.Lock()
		c.open = false
		close(c.send)
		c.mu.Unlock()
		close(c.done)

		log.Info().
			Str("connection_id", c.ID).
			Str("room_id", c.Endpoint.RoomID).
			Dur("connected_for", time.Since(c.ConnectedAt)).
			Msg("connection closed")
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.shutdown()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.shutdown()
		close(c.frames)
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		if messageType != websocket.TextMessage {
			log.Debug().
				Str("connection_id", c.ID).
				Int("message_type", messageType).
				Msg("ignoring non-text frame")
			continue
		}

		select {
		case c.frames <- string(message):
		case <-c.done:
			return
		}
	}
}
