package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	BackendRemote = "remote"
	BackendOpenAI = "openai"
)

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"*"`
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Inference
	InferenceBackend string        `env:"INFERENCE_BACKEND" envDefault:"remote"`
	InferenceURL     string        `env:"INFERENCE_URL" envDefault:"https://opgiszqogqvedfcvvuvj.supabase.co/functions/v1/chat-inference"`
	InferenceAnonKey string        `env:"INFERENCE_ANON_KEY"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"30s"`
	HistoryLimit     int           `env:"HISTORY_LIMIT" envDefault:"40"`

	// Local responder
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenAIModel         string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ResponderPromptFile string `env:"RESPONDER_PROMPT_FILE"`

	// Sessions
	DatabaseURL string        `env:"DB_URL"`
	RedisURL    string        `env:"REDIS_URL"`
	SessionFile string        `env:"SESSION_FILE" envDefault:"data/session.json"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	// SingleUserMode shares the developer session file and service account with
	// every chat session. Local development only.
	SingleUserMode bool `env:"SINGLE_USER_MODE" envDefault:"false"`

	// Per-session limit on chat requests; zero disables it
	ChatRateLimit float64 `env:"CHAT_RATE_LIMIT" envDefault:"2"`
	ChatRateBurst int     `env:"CHAT_RATE_BURST" envDefault:"5"`

	// Optional service account used when no user session exists
	ServiceTokenURL     string   `env:"SERVICE_TOKEN_URL"`
	ServiceClientID     string   `env:"SERVICE_CLIENT_ID"`
	ServiceClientSecret string   `env:"SERVICE_CLIENT_SECRET"`
	ServiceScopes       []string `env:"SERVICE_SCOPES" envSeparator:","`
	ServiceUserID       string   `env:"SERVICE_USER_ID" envDefault:"service"`

	CatalogFile string `env:"CATALOG_FILE"`
}

// ServiceAccountEnabled reports whether client-credentials settings are complete.
func (c Config) ServiceAccountEnabled() bool {
	return c.ServiceTokenURL != "" && c.ServiceClientID != "" && c.ServiceClientSecret != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	cfg.InferenceBackend = strings.ToLower(strings.TrimSpace(cfg.InferenceBackend))
	cfg.InferenceURL = strings.TrimSpace(cfg.InferenceURL)
	cfg.InferenceAnonKey = strings.TrimSpace(cfg.InferenceAnonKey)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)

	switch cfg.InferenceBackend {
	case BackendRemote:
		if cfg.InferenceURL == "" {
			return Config{}, fmt.Errorf("INFERENCE_URL is required for the remote backend")
		}
	case BackendOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown INFERENCE_BACKEND %q", cfg.InferenceBackend)
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.ChatRateLimit < 0 {
		return Config{}, fmt.Errorf("CHAT_RATE_LIMIT must not be negative")
	}
	if cfg.ChatRateBurst < 1 {
		cfg.ChatRateBurst = 1
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return cfg, nil
}
