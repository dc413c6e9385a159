package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/session"
)

const helpText = `commands:
  /ready   toggle your ready flag
  /roll    roll the dice on your turn
  /help    show this help
  /quit    leave the room
anything else is sent as chat`

type inputAction int

const (
	actionNone inputAction = iota
	actionSubmit
	actionHelp
	actionQuit
)

// parseInput maps one line typed by the user to what the client should do
func parseInput(line string) (inputAction, session.Command) {
	text := strings.TrimSpace(line)
	switch strings.ToLower(text) {
	case "":
		return actionNone, session.Command{}
	case "/ready":
		return actionSubmit, session.Command{Kind: session.CommandReady}
	case "/roll":
		return actionSubmit, session.Command{Kind: session.CommandRoll}
	case "/help", "/?":
		return actionHelp, session.Command{}
	case "/quit", "/exit":
		return actionQuit, session.Command{}
	}
	return actionSubmit, session.Command{Kind: session.CommandChat, Text: text}
}

// commandSubmitter accepts user actions, implemented by *session.Session
type commandSubmitter interface {
	Submit(ctx context.Context, cmd session.Command) error
}

// readCommands feeds lines from in to the session until EOF, /quit or ctx is
// done. Lines of any length are accepted.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, sess commandSubmitter) {
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			action, cmd := parseInput(line)
			switch action {
			case actionNone:
			case actionHelp:
				fmt.Fprintf(out, "\r%s\n", strings.ReplaceAll(helpText, "\n", "\n\r"))
			case actionQuit:
				return
			case actionSubmit:
				if err := sess.Submit(ctx, cmd); err != nil {
					return
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("failed to read input")
			}
			return
		}
	}
}
