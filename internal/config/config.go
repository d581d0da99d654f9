package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces the tuning variables, e.g. BASKET_PORT.
const EnvPrefix = "BASKET"

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config holds the configuration for the application.
type Config struct {
	GeminiAPIKey string
	GroqAPIKey   string

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64

	Tuning
}

// Tuning holds optional settings with sane defaults.
type Tuning struct {
	Port         string `envconfig:"PORT" default:"8080"`
	DatabasePath string `envconfig:"DB_PATH" default:"data/basket.db"`
	StateBackend string `envconfig:"STATE_BACKEND" default:"sqlite"`
	StateDir     string `envconfig:"STATE_DIR" default:"data"`
	CatalogFile  string `envconfig:"CATALOG_FILE"`

	RedisURL     string `envconfig:"REDIS_URL"`
	KVURL        string `envconfig:"KV_URL"`
	ShareBaseURL string `envconfig:"SHARE_BASE_URL" default:"http://localhost:8080/"`
	ShareSecret  string `envconfig:"SHARE_SECRET"`

	GeminiModel string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	GroqModel   string `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`

	SyncDebounce    time.Duration `envconfig:"SYNC_DEBOUNCE" default:"2s"`
	SuggestDebounce time.Duration `envconfig:"SUGGEST_DEBOUNCE" default:"400ms"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LOG_WARN_STACK" default:"false"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	groqAPIKey := os.Getenv("GROQ_API_KEY")
	if geminiAPIKey == "" && groqAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	// Telegram Config (optional, the bot is only started with a token)
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramWebhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")
	var telegramAllowUserID int64
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_ALLOW_USER_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOW_USER_ID must be numeric: %w", err)
		}
		telegramAllowUserID = id
	}
	if telegramBotToken != "" && telegramWebhookURL == "" {
		return nil, fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}

	cfg := &Config{
		GeminiAPIKey:        geminiAPIKey,
		GroqAPIKey:          groqAPIKey,
		TelegramBotToken:    telegramBotToken,
		TelegramWebhookURL:  telegramWebhookURL,
		TelegramAllowUserID: telegramAllowUserID,
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Tuning); err != nil {
		return nil, fmt.Errorf("parsing %s_* settings: %w", EnvPrefix, err)
	}

	switch cfg.StateBackend {
	case BackendSQLite, BackendFile:
	default:
		return nil, fmt.Errorf("%s_STATE_BACKEND must be %q or %q, got %q", EnvPrefix, BackendSQLite, BackendFile, cfg.StateBackend)
	}
	if cfg.RedisURL != "" && cfg.KVURL != "" {
		return nil, fmt.Errorf("%s_REDIS_URL and %s_KV_URL are mutually exclusive", EnvPrefix, EnvPrefix)
	}

	return cfg, nil
}

// TelegramEnabled reports whether the chat front-end should start.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}
