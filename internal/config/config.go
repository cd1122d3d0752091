// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (GEMINI_API_KEY, DATABASE_URL, ...)
//  2. Config file (~/.copilot/config.yaml)
//  3. Default values
//
// Categories:
//   - AI: Gemini model selection, temperature, per-call timeout, retry budget
//   - Transactions store: PostgreSQL DSN for the read-only dataset (required)
//   - Chat store: PostgreSQL DSN for conversation persistence (optional,
//     derived from the transactions DSN when unset)
//   - Pipeline: row cap, history window
//   - Server: listen address
//
// Sensitive values (API key, DSN passwords) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when neither the environment nor the config file
// provides a setting. Timeouts and the row cap mirror the operational
// limits of the transaction dataset this service fronts.
const (
	DefaultModelName    = "gemini-2.5-flash"
	DefaultTemperature  = float32(0.2)
	DefaultAgentTimeout = 60 * time.Second
	DefaultQueryTimeout = 30 * time.Second
	DefaultMaxQueryRows = 1000
	DefaultHistoryTurns = 8
	DefaultListenAddr   = "127.0.0.1:8001"
	DefaultChatDBName   = "ivy"

	// DefaultAgentRetries is the bounded retry budget for a single
	// language-model call (beyond the initial attempt).
	DefaultAgentRetries = 1

	// DefaultAgentRateLimit is the sustained request rate allowed
	// against the language-model service, in requests per second.
	DefaultAgentRateLimit = 2.0
	DefaultAgentRateBurst = 4
)

// Config stores application configuration.
type Config struct {
	// AI agent configuration
	GeminiAPIKey   string        `mapstructure:"gemini_api_key" json:"gemini_api_key"`
	ModelName      string        `mapstructure:"model_name" json:"model_name"`
	Temperature    float32       `mapstructure:"temperature" json:"temperature"`
	AgentTimeout   time.Duration `mapstructure:"agent_timeout" json:"agent_timeout"`
	AgentRetries   int           `mapstructure:"agent_retries" json:"agent_retries"`
	AgentRateLimit float64       `mapstructure:"agent_rate_limit" json:"agent_rate_limit"`
	AgentRateBurst int           `mapstructure:"agent_rate_burst" json:"agent_rate_burst"`

	// Transactional store (required)
	DatabaseURL  string        `mapstructure:"database_url" json:"database_url"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" json:"query_timeout"`
	MaxQueryRows int           `mapstructure:"max_query_rows" json:"max_query_rows"`

	// Chat store (optional; empty means derive from DatabaseURL)
	ChatDatabaseURL string `mapstructure:"chat_database_url" json:"chat_database_url"`
	ChatDBName      string `mapstructure:"chat_db_name" json:"chat_db_name"`

	// Conversation context window: number of prior turns fed back into
	// the generation prompt.
	HistoryTurns int `mapstructure:"history_turns" json:"history_turns"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// MarshalJSON masks sensitive fields so a Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	masked.DatabaseURL = maskDSN(masked.DatabaseURL)
	masked.ChatDatabaseURL = maskDSN(masked.ChatDatabaseURL)
	return json.Marshal(masked)
}

// maskDSN hides the password component of a postgres URL.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// Load reads configuration from the config file and environment.
// A missing config file is not an error; environment variables and
// defaults are enough to run.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ~/.copilot/config.yaml
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".copilot"))
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errorsAs(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment overrides. The unprefixed names match what the
	// deployment environment already exports.
	bindEnvs(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.ChatDatabaseURL == "" && cfg.DatabaseURL != "" {
		derived, err := deriveChatURL(cfg.DatabaseURL, cfg.ChatDBName)
		if err != nil {
			return nil, fmt.Errorf("deriving chat database URL: %w", err)
		}
		cfg.ChatDatabaseURL = derived
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("agent_timeout", DefaultAgentTimeout)
	v.SetDefault("agent_retries", DefaultAgentRetries)
	v.SetDefault("agent_rate_limit", DefaultAgentRateLimit)
	v.SetDefault("agent_rate_burst", DefaultAgentRateBurst)
	v.SetDefault("query_timeout", DefaultQueryTimeout)
	v.SetDefault("max_query_rows", DefaultMaxQueryRows)
	v.SetDefault("chat_db_name", DefaultChatDBName)
	v.SetDefault("history_turns", DefaultHistoryTurns)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

func bindEnvs(v *viper.Viper) {
	// Errors from BindEnv only occur for empty keys; ignore.
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("chat_database_url", "CHAT_DATABASE_URL")
	_ = v.BindEnv("model_name", "COPILOT_MODEL")
	_ = v.BindEnv("listen_addr", "COPILOT_ADDR")
	_ = v.BindEnv("log_level", "COPILOT_LOG_LEVEL")
}

// deriveChatURL rewrites the database name of a postgres URL so chat
// persistence lands in its own database on the same server.
func deriveChatURL(databaseURL, chatDBName string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidDatabaseURL, u.Scheme)
	}
	if chatDBName == "" {
		chatDBName = DefaultChatDBName
	}
	u.Path = "/" + chatDBName
	return u.String(), nil
}

// errorsAs is a local indirection so the viper error check reads cleanly.
func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	t, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = t
	}
	return ok
}

// Redacted returns a loggable single-line description of the config.
func (c *Config) Redacted() string {
	return fmt.Sprintf("model=%s db=%s chat_db=%s rows_cap=%d history=%d",
		c.ModelName, maskDSN(c.DatabaseURL), maskDSN(c.ChatDatabaseURL),
		c.MaxQueryRows, c.HistoryTurns)
}

// ChatDatabaseEnabled reports whether chat persistence is configured at
// all. An explicit "disabled" value turns the chat store off without
// touching the answering path.
func (c *Config) ChatDatabaseEnabled() bool {
	return c.ChatDatabaseURL != "" && !strings.EqualFold(c.ChatDatabaseURL, "disabled")
}
