// Package countdown renders the time left on the access token. It reads the
// expiry from a cookie and has nothing to do with the game protocol.
package countdown

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie the login flow sets with the token's expiry
const CookieName = "token_expiration"

// ErrNoExpiration means the expiry cookie is not set
var ErrNoExpiration = errors.New("no token expiration cookie")

// TimerSink receives the rendered readout
type TimerSink interface {
	SetTimer(text string)
}

// Presenter drives the countdown readout
type Presenter struct {
	source   CookieSource
	sink     TimerSink
	clock    clockwork.Clock
	interval time.Duration
}

// NewPresenter creates a presenter. A nil clock means the real clock.
func NewPresenter(source CookieSource, sink TimerSink, clock clockwork.Clock) *Presenter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Presenter{
		source:   source,
		sink:     sink,
		clock:    clock,
		interval: time.Second,
	}
}

// Expiration reads and parses the expiry cookie
func (p *Presenter) Expiration() (time.Time, error) {
	raw, ok := p.source.Cookie(CookieName)
	if !ok || strings.TrimSpace(raw) == "" {
		return time.Time{}, ErrNoExpiration
	}
	return ParseExpiration(raw)
}

// ParseExpiration parses decimal seconds since the epoch. Any fractional
// part is dropped.
func ParseExpiration(raw string) (time.Time, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiration %q: %w", raw, err)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}, fmt.Errorf("parse expiration %q: not a finite number", raw)
	}
	return time.Unix(int64(math.Trunc(secs)), 0), nil
}

// Format renders a remaining duration as m:ss
func Format(remaining time.Duration) string {
	if remaining <= 0 {
		return "0:00"
	}
	total := int64(remaining / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Run renders the readout immediately and then once per second until the
// token expires or ctx is cancelled. Without an expiry cookie it returns at
// once and renders nothing.
func (p *Presenter) Run(ctx context.Context) error {
	expiresAt, err := p.Expiration()
	if err != nil {
		if errors.Is(err, ErrNoExpiration) {
			log.Debug().Msg("no token expiration cookie, countdown disabled")
		} else {
			log.Warn().Err(err).Msg("countdown disabled")
		}
		return nil
	}

	if !p.render(expiresAt) {
		return nil
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if !p.render(expiresAt) {
				log.Info().Msg("access token expired")
				return nil
			}
		}
	}
}

// render writes the current readout and reports whether time remains
func (p *Presenter) render(expiresAt time.Time) bool {
	remaining := expiresAt.Sub(p.clock.Now())
	p.sink.SetTimer(Format(remaining))
	return remaining > 0
}
