package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Storage      StorageConfig      `mapstructure:"storage"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Proactive    ProactiveConfig    `mapstructure:"proactive"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Retention    RetentionConfig    `mapstructure:"retention"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StorageConfig struct {
	Driver string       `mapstructure:"driver"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LLMConfig struct {
	Timeout           time.Duration  `mapstructure:"timeout"`
	FailureThreshold  int            `mapstructure:"failure_threshold"`
	RateLimitCooldown time.Duration  `mapstructure:"rate_limit_cooldown"`
	FallbackReply     string         `mapstructure:"fallback_reply"`
	Anthropic         ProviderConfig `mapstructure:"anthropic"`
	Gemini            ProviderConfig `mapstructure:"gemini"`
	OpenAI            ProviderConfig `mapstructure:"openai"`
}

type ProviderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	Priority  int    `mapstructure:"priority"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type ConversationConfig struct {
	MaxSuggestions int `mapstructure:"max_suggestions"`
	HistoryLimit   int `mapstructure:"history_limit"`
}

type NotifyConfig struct {
	Workers       int             `mapstructure:"workers"`
	Timeout       time.Duration   `mapstructure:"timeout"`
	MaxAttempts   int             `mapstructure:"max_attempts"`
	RetrySchedule []time.Duration `mapstructure:"retry_schedule"`
	TTL           time.Duration   `mapstructure:"ttl"`
	Transport     string          `mapstructure:"transport"`
	Webhook       WebhookConfig   `mapstructure:"webhook"`
}

type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

type ProactiveConfig struct {
	ScanInterval  time.Duration   `mapstructure:"scan_interval"`
	CheckInterval time.Duration   `mapstructure:"check_interval"`
	Thresholds    []time.Duration `mapstructure:"thresholds"`
	MaxUpdates    int             `mapstructure:"max_updates"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RetentionConfig struct {
	NotificationTTL time.Duration `mapstructure:"notification_ttl"`
	AttemptTTL      time.Duration `mapstructure:"attempt_ttl"`
	TurnTTL         time.Duration `mapstructure:"turn_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("djobea")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/djobea")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DJOBEA")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// API keys usually arrive through the environment under their canonical
	// names, which do not carry the DJOBEA prefix.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Anthropic.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAI.APIKey = key
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./data/djobea.db")

	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("llm.failure_threshold", 1)
	viper.SetDefault("llm.rate_limit_cooldown", 30*time.Second)
	viper.SetDefault("llm.fallback_reply",
		"Désolé, je rencontre un problème technique. Un agent va vous répondre rapidement. Merci de patienter.")

	viper.SetDefault("llm.anthropic.enabled", true)
	viper.SetDefault("llm.anthropic.model", "claude-sonnet-4-20250514")
	viper.SetDefault("llm.anthropic.priority", 1)
	viper.SetDefault("llm.anthropic.max_tokens", 1024)

	viper.SetDefault("llm.gemini.enabled", true)
	viper.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	viper.SetDefault("llm.gemini.priority", 2)
	viper.SetDefault("llm.gemini.max_tokens", 1024)

	viper.SetDefault("llm.openai.enabled", true)
	viper.SetDefault("llm.openai.model", "gpt-4o-mini")
	viper.SetDefault("llm.openai.priority", 3)
	viper.SetDefault("llm.openai.max_tokens", 1024)

	viper.SetDefault("conversation.max_suggestions", 3)
	viper.SetDefault("conversation.history_limit", 10)

	viper.SetDefault("notify.workers", 10)
	viper.SetDefault("notify.timeout", 30*time.Second)
	viper.SetDefault("notify.max_attempts", 5)
	viper.SetDefault("notify.retry_schedule", []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
	})
	viper.SetDefault("notify.ttl", 24*time.Hour)
	viper.SetDefault("notify.transport", "log")

	viper.SetDefault("proactive.scan_interval", 30*time.Second)
	viper.SetDefault("proactive.check_interval", time.Minute)
	viper.SetDefault("proactive.thresholds", []time.Duration{
		5 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
	})
	viper.SetDefault("proactive.max_updates", 30)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("retention.notification_ttl", 30*24*time.Hour)
	viper.SetDefault("retention.attempt_ttl", 7*24*time.Hour)
	viper.SetDefault("retention.turn_ttl", 90*24*time.Hour)
	viper.SetDefault("retention.sweep_interval", 10*time.Minute)
}
