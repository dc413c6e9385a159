package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/diceboard/diceboard/go/internal/game/state"
)

// Config is the client configuration. Values come from the YAML file first,
// then environment variables, then command-line flags.
type Config struct {
	Server     string `yaml:"server"`
	Room       string `yaml:"room"`
	Username   string `yaml:"username"`
	Cookie     string `yaml:"cookie"`
	BoardCells int    `yaml:"board_cells"`
	LogLevel   string `yaml:"log_level"`

	Inspect struct {
		Addr string `yaml:"addr"`
	} `yaml:"inspect"`

	Relay struct {
		NATSURL       string `yaml:"nats_url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	return &Config{
		Server:     "http://localhost:8000",
		Room:       "room_1",
		BoardCells: state.DefaultBoardCells,
		LogLevel:   "info",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// applyEnv overrides config with DICEBOARD_* and NATS_URL variables
func (c *Config) applyEnv() {
	c.Server = getEnv("DICEBOARD_SERVER", c.Server)
	c.Room = getEnv("DICEBOARD_ROOM", c.Room)
	c.Username = getEnv("DICEBOARD_USER", c.Username)
	c.Cookie = getEnv("DICEBOARD_COOKIE", c.Cookie)
	c.BoardCells = getEnvAsInt("DICEBOARD_BOARD_CELLS", c.BoardCells)
	c.LogLevel = getEnv("DICEBOARD_LOG_LEVEL", c.LogLevel)
	c.Inspect.Addr = getEnv("DICEBOARD_INSPECT_ADDR", c.Inspect.Addr)
	c.Relay.NATSURL = getEnv("NATS_URL", c.Relay.NATSURL)
	c.Relay.StreamName = getEnv("DICEBOARD_RELAY_STREAM", c.Relay.StreamName)
	c.Relay.SubjectPrefix = getEnv("DICEBOARD_RELAY_SUBJECT_PREFIX", c.Relay.SubjectPrefix)
}

func (c *Config) validate() error {
	var problems []string
	if c.Server == "" {
		problems = append(problems, "server is required")
	}
	if c.Room == "" {
		problems = append(problems, "room is required")
	}
	if strings.TrimSpace(c.Username) == "" {
		problems = append(problems, "username is required")
	}
	if c.BoardCells <= 0 {
		problems = append(problems, "board_cells must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level: %v", err))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
