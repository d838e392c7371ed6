package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Credentials are venue API keys. They never appear in the config file;
// they come from the environment, optionally seeded from a .env file.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadCredentials reads EXCHANGE_API_KEY and EXCHANGE_API_SECRET, loading
// the given .env file first when one is named. The paper venue needs no
// credentials, so missing keys are only an error when required is set.
func LoadCredentials(envFile string, required bool) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Credentials{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env in the working directory is picked up if
		// present.
		_ = godotenv.Load()
	}

	creds := Credentials{
		APIKey:    os.Getenv("EXCHANGE_API_KEY"),
		APISecret: os.Getenv("EXCHANGE_API_SECRET"),
	}
	if required && (creds.APIKey == "" || creds.APISecret == "") {
		return Credentials{}, fmt.Errorf("EXCHANGE_API_KEY and EXCHANGE_API_SECRET must be set")
	}
	return creds, nil
}
