// Package config reads server settings from the environment, after loading
// a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	// ReferenceData is a YAML file replacing the embedded reference set.
	ReferenceData string
	SaveDebounce  time.Duration
	// StateMaxAge is how long an untouched session snapshot is kept.
	StateMaxAge time.Duration

	TranscribeURL     string
	TranscribeAPIKey  string
	TranscribeTimeout time.Duration

	SessionCookie string
}

// TranscriptionEnabled reports whether voice input is configured.
func (c Config) TranscriptionEnabled() bool { return c.TranscribeURL != "" }

// Load reads files (default ".env") into the environment without overriding
// variables already set, then builds a Config. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (Config, error) {
	c := Config{
		Port:             getenv("PORT", "8080"),
		DBPath:           getenv("DB_PATH", "mirecurso.db"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
		ReferenceData:    os.Getenv("REFERENCE_DATA"),
		TranscribeURL:    os.Getenv("TRANSCRIBE_URL"),
		TranscribeAPIKey: os.Getenv("TRANSCRIBE_API_KEY"),
		SessionCookie:    getenv("SESSION_COOKIE", "mirecurso_sesion"),
	}
	var err error
	if c.SaveDebounce, err = duration("SAVE_DEBOUNCE", 400*time.Millisecond); err != nil {
		return Config{}, err
	}
	if c.StateMaxAge, err = duration("STATE_MAX_AGE", 90*24*time.Hour); err != nil {
		return Config{}, err
	}
	if c.TranscribeTimeout, err = duration("TRANSCRIBE_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return Config{}, fmt.Errorf("PORT %q: not a number", c.Port)
	}
	return c, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s %q: invalid duration", key, v)
	}
	return d, nil
}
