package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server configuration read from the environment.
type Config struct {
	DBPath          string        `env:"LOANLEDGER_DB_PATH" envDefault:"./loanledger.db"`
	Addr            string        `env:"LOANLEDGER_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOANLEDGER_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOANLEDGER_LOG_FORMAT" envDefault:"text"`
	PenaltyInterval time.Duration `env:"LOANLEDGER_PENALTY_INTERVAL" envDefault:"24h"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	// A missing .env is not an error; a malformed one is.
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PenaltyInterval <= 0 {
		return Config{}, fmt.Errorf("LOANLEDGER_PENALTY_INTERVAL must be positive, got %s", cfg.PenaltyInterval)
	}
	return cfg, nil
}
