package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/diceboard/diceboard/go/internal/game/render"
	"github.com/diceboard/diceboard/go/internal/game/session"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configPath := flag.String("config", getEnv("DICEBOARD_CONFIG", "diceboard.yaml"), "path to the YAML config file")
	server := flag.String("server", "", "game server base URL")
	room := flag.String("room", "", "room id to join")
	user := flag.String("user", "", "username to play as")
	cookie := flag.String("cookie", "", "raw Cookie header sent with the handshake")
	boardCells := flag.Int("board-cells", 0, "number of cells on the board")
	inspectAddr := flag.String("inspect-addr", "", "address for the inspect server, empty disables it")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.applyEnv()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			config.Server = *server
		case "room":
			config.Room = *room
		case "user":
			config.Username = *user
		case "cookie":
			config.Cookie = *cookie
		case "board-cells":
			config.BoardCells = *boardCells
		case "inspect-addr":
			config.Inspect.Addr = *inspectAddr
		}
	})

	if err := config.validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, _ := zerolog.ParseLevel(config.LogLevel)
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("server", config.Server).
		Str("room", config.Room).
		Str("user", config.Username).
		Msg("joining room")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	terminal := render.NewTerminal(os.Stdout)

	services, err := setupServices(ctx, config, terminal)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start client")
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- services.Session.Run(ctx)
	}()

	go func() {
		if err := services.Countdown.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("countdown failed")
		}
	}()

	if services.Inspect != nil {
		go func() {
			if err := services.Inspect.Serve(ctx, config.Inspect.Addr); err != nil {
				log.Error().Err(err).Msg("inspect server failed")
			}
		}()
	}

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		readCommands(ctx, os.Stdin, os.Stdout, services.Session)
	}()

	// Wait for interrupt signal, /quit or a dropped connection
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
		<-sessionDone
	case <-inputDone:
		log.Info().Msg("leaving room")
		cancel()
		<-sessionDone
	case err := <-sessionDone:
		if errors.Is(err, session.ErrDisconnected) {
			log.Warn().Msg("disconnected from room")
		}
		cancel()
	}

	services.Close()

	log.Info().Msg("diceboard client shutdown complete")
}
