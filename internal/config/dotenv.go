package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnvFiles copies values from the given files into the environment.
// Variables already set win, and earlier files win over later ones.
func loadDotEnvFiles(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); exists {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
