package common

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads an optional .env file and picks up the environment
// overrides. Variables already present in the process environment win.
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if v := os.Getenv("SQL_DSN"); v != "" {
		SQLDSN = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		SessionSecret = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		CORSOrigins = v
	}
	return nil
}
