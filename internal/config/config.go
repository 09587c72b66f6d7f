// Package config loads the relay's environment-driven configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the process reads from the environment. Defaults
// mirror the deployed service.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"3001"`

	// Origins allowed to establish connections.
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"https://joichat.netlify.app,http://localhost:5173,http://localhost:3001"`

	RoomCapacity    int           `env:"ROOM_CAPACITY" envDefault:"10"`
	EmptyRoomGrace  time.Duration `env:"EMPTY_ROOM_GRACE" envDefault:"5s"`
	MaxMessageChars int           `env:"MAX_MESSAGE_CHARS" envDefault:"1000"`

	// Single-frame ceiling; sized for inline image payloads.
	MaxFrameBytes int64 `env:"MAX_FRAME_BYTES" envDefault:"100000000"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == "production" }
