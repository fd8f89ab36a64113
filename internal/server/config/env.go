package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/consejo/internal/flagx"
)

// EnvPrefix is prepended to every env tag of Config.
const EnvPrefix = "CONSEJO_"

const defaultEnvFile = ".env"

// parseEnv loads an optional dotenv file into the process environment and
// then overlays every CONSEJO_* variable onto config. The file comes from
// -env-file; without the flag ./.env is used when present. Variables already
// set in the environment win over the file.
func parseEnv(config *Config) {
	if err := loadEnvFile(flagx.EnvFileFlags()); err != nil {
		panic(err)
	}
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(fmt.Errorf("parse env: %w", err))
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
