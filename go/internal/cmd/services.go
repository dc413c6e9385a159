package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/countdown"
	"github.com/diceboard/diceboard/go/internal/game/gateway"
	"github.com/diceboard/diceboard/go/internal/game/inspect"
	"github.com/diceboard/diceboard/go/internal/game/relay"
	"github.com/diceboard/diceboard/go/internal/game/render"
	"github.com/diceboard/diceboard/go/internal/game/session"
	"github.com/diceboard/diceboard/go/internal/game/state"
)

// Services holds every component of a running client
type Services struct {
	Conn      *gateway.Connection
	Session   *session.Session
	Countdown *countdown.Presenter
	Inspect   *inspect.Service
	Relay     *relay.JetStreamPublisher
}

// newCookieJar seeds a jar with the cookies from a raw Cookie header so the
// WebSocket handshake and the countdown see the same values
func newCookieJar(serverURL *url.URL, header string) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if header == "" {
		return jar, nil
	}
	req := &http.Request{Header: http.Header{"Cookie": []string{header}}}
	jar.SetCookies(serverURL, req.Cookies())
	return jar, nil
}

func setupServices(ctx context.Context, config *Config, sink *render.Terminal) (*Services, error) {
	serverURL, err := url.Parse(config.Server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	jar, err := newCookieJar(serverURL, config.Cookie)
	if err != nil {
		return nil, err
	}

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.Jar = jar

	conn, err := gateway.Dial(ctx, gateway.Endpoint{
		BaseURL:  config.Server,
		RoomID:   config.Room,
		Username: config.Username,
	}, connConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to room: %w", err)
	}

	reconciler := state.NewReconciler(state.Config{
		Self:       config.Username,
		BoardCells: config.BoardCells,
	})
	renderer := render.NewRenderer(sink)

	services := &Services{
		Conn:      conn,
		Countdown: countdown.NewPresenter(countdown.JarSource{Jar: jar, URL: serverURL}, renderer, nil),
	}

	var opts []session.Option
	if config.Relay.NATSURL != "" {
		relayConfig := relay.DefaultJetStreamConfig()
		relayConfig.URL = config.Relay.NATSURL
		if config.Relay.StreamName != "" {
			relayConfig.StreamName = config.Relay.StreamName
		}
		if config.Relay.SubjectPrefix != "" {
			relayConfig.SubjectPrefix = config.Relay.SubjectPrefix
		}

		publisher, err := relay.NewJetStreamPublisher(relayConfig, config.Room, config.Username)
		if err != nil {
			// the relay is optional, keep playing without it
			log.Error().Err(err).Str("nats_url", config.Relay.NATSURL).Msg("frame relay disabled")
		} else {
			services.Relay = publisher
			opts = append(opts, session.WithPublisher(publisher))
		}
	}

	services.Session = session.New(conn, reconciler, renderer, opts...)

	if config.Inspect.Addr != "" {
		services.Inspect = inspect.NewService(services.Session)
	}

	return services, nil
}

// Close releases the connection and the relay
func (s *Services) Close() {
	if err := s.Conn.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close room connection")
	}
	if s.Relay != nil {
		if err := s.Relay.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close frame relay")
		}
	}
}
