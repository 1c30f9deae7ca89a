package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	// EnvDatabaseURL names the variable holding the catalog DSN.
	EnvDatabaseURL = "CATALOG_DATABASE_URL"

	// EnvPath names the variable that overrides the .env file location.
	EnvPath = "ENV_PATH"

	// DefaultEnvFile is the .env file read when ENV_PATH is unset.
	DefaultEnvFile = ".env"
)

// LoadDotEnv loads environment variables from a .env file. Variables already
// set in the process environment win. The path comes from ENV_PATH, falling
// back to defaultPath. A missing default file is not an error; a missing
// file named by ENV_PATH is.
func LoadDotEnv(defaultPath string) error {
	envPath, explicit := os.LookupEnv(EnvPath)
	if !explicit || envPath == "" {
		envPath = defaultPath
		explicit = false
	}

	if err := godotenv.Load(envPath); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	return nil
}

// DatabaseURLFromEnv returns the catalog DSN from the environment.
func DatabaseURLFromEnv() string {
	return os.Getenv(EnvDatabaseURL)
}
