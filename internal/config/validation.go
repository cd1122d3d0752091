package config

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing GEMINI_API_KEY")

	// ErrMissingDatabaseURL indicates the transactional store DSN is missing.
	ErrMissingDatabaseURL = errors.New("missing DATABASE_URL")

	// ErrInvalidDatabaseURL indicates a DSN that is not a postgres URL.
	ErrInvalidDatabaseURL = errors.New("invalid database URL")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxQueryRows indicates the row cap is out of range.
	ErrInvalidMaxQueryRows = errors.New("invalid max query rows")

	// ErrInvalidHistoryTurns indicates the history window is out of range.
	ErrInvalidHistoryTurns = errors.New("invalid history turns")

	// ErrInvalidTimeout indicates a non-positive timeout.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Validate checks the configuration for the full pipeline. The
// transactional store and the language model are hard requirements;
// the chat store is not (absence degrades persistence only).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.GeminiAPIKey == "" {
		return ErrMissingAPIKey
	}

	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if err := validatePostgresURL(c.DatabaseURL); err != nil {
		return fmt.Errorf("DATABASE_URL: %w", err)
	}
	if c.ChatDatabaseEnabled() {
		if err := validatePostgresURL(c.ChatDatabaseURL); err != nil {
			return fmt.Errorf("CHAT_DATABASE_URL: %w", err)
		}
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxQueryRows < 1 || c.MaxQueryRows > 100_000 {
		return fmt.Errorf("%w: %d (must be in [1, 100000])", ErrInvalidMaxQueryRows, c.MaxQueryRows)
	}
	if c.HistoryTurns < 0 || c.HistoryTurns > 100 {
		return fmt.Errorf("%w: %d (must be in [0, 100])", ErrInvalidHistoryTurns, c.HistoryTurns)
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("%w: agent_timeout=%v", ErrInvalidTimeout, c.AgentTimeout)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query_timeout=%v", ErrInvalidTimeout, c.QueryTimeout)
	}

	return nil
}

func validatePostgresURL(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidDatabaseURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidDatabaseURL)
	}
	return nil
}
