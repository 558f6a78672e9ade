package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names holding the search API credentials.
const (
	EnvEngineID = "GOOGLE_API_CX"
	EnvAPIKey   = "GOOGLE_API_KEY"
)

// DefaultEnvFile is loaded when present and no --env-file is given.
const DefaultEnvFile = ".env"

// Credentials are the two values required by the search API.
type Credentials struct {
	// EngineID is the custom search engine identifier (cx).
	EngineID string

	// APIKey is the API key (key).
	APIKey string
}

// Validate returns ErrMissingCredentials unless both values are set.
func (c Credentials) Validate() error {
	if c.EngineID == "" || c.APIKey == "" {
		return ErrMissingCredentials
	}
	return nil
}

// LoadCredentials reads the credentials from the process environment.
// If envFile is non-empty it is loaded first with godotenv; variables that
// are already set in the environment are not overridden. An explicitly named
// env file that does not exist is an error; the default .env is optional.
func LoadCredentials(envFile string) (Credentials, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}

	values, err := godotenv.Read(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && envFile == "":
		values = nil
	default:
		return Credentials{}, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	creds := Credentials{
		EngineID: lookup(EnvEngineID, values),
		APIKey:   lookup(EnvAPIKey, values),
	}
	if err := creds.Validate(); err != nil {
		return creds, err
	}
	return creds, nil
}

// lookup prefers the process environment over the env file.
func lookup(name string, fileValues map[string]string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fileValues[name]
}
