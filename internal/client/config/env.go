package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dmitrijs2005/nextshape/internal/flagx"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "NEXTSHAPE"

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (explicit -e path, or ./.env when it exists)
// and overlays cfg with NEXTSHAPE_* variables. Variables already present in
// the process environment win over the file.
func parseEnv(cfg *Config, args []string) error {
	path := flagx.EnvFilePath(args)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	return nil
}
