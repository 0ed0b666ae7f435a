package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotEnvFilename is the optional file with KEY=value lines loaded before the environment is read.
const DotEnvFilename = ".env"

// applyEnv overrides cfg with the environment. Variables already set in the
// process environment win over the .env file.
func applyEnv(cfg *Config) error {
	if err := godotenv.Load(DotEnvFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", DotEnvFilename, err)
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}
