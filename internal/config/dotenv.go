package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// loadDotenv loads variables from envFile into the process environment
// without overriding variables that are already set. An empty envFile
// tries ".env" and silently skips it when absent; a named file that is
// missing is an error.
func loadDotenv(envFile string) error {
	explicit := envFile != ""
	if envFile == "" {
		envFile = ".env"
	}

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", envFile, err)
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}
