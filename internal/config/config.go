// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// Telegram issuer
	TelegramBotToken   string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIBaseURL string `mapstructure:"TELEGRAM_API_BASE_URL"`
	CommunityChatID    int64  `mapstructure:"COMMUNITY_CHAT_ID"`
	IssuerTimeoutSecs  int    `mapstructure:"ISSUER_TIMEOUT_SECONDS"`

	// Worker scheduling
	SchedulerToken       string `mapstructure:"SCHEDULER_TOKEN"`
	WorkerStepURL        string `mapstructure:"WORKER_STEP_URL"`
	RetryFallbackSecs    int    `mapstructure:"RETRY_FALLBACK_SECONDS"`
	MaxIssuanceAttempts  int    `mapstructure:"MAX_ISSUANCE_ATTEMPTS"`
	DispatchIntervalSecs int    `mapstructure:"DISPATCH_INTERVAL_SECONDS"`

	// Analytics sink
	AnalyticsURL string `mapstructure:"ANALYTICS_URL"`
	AnalyticsKey string `mapstructure:"ANALYTICS_KEY"`

	// Tracing
	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables and defaults suffice.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to merge profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	// Set default values for development
	viper.SetDefault("PORT", "8390")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "invitegate")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org")
	viper.SetDefault("ISSUER_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SCHEDULER_TOKEN", "local-scheduler-token")
	viper.SetDefault("WORKER_STEP_URL", "http://localhost:8390/internal/worker/step")
	viper.SetDefault("RETRY_FALLBACK_SECONDS", 10)
	viper.SetDefault("MAX_ISSUANCE_ATTEMPTS", 50)
	viper.SetDefault("DISPATCH_INTERVAL_SECONDS", 1)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 0.1)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MaxIssuanceAttempts <= 0 {
		return errors.New("MAX_ISSUANCE_ATTEMPTS must be positive")
	}
	if c.RetryFallbackSecs <= 0 {
		return errors.New("RETRY_FALLBACK_SECONDS must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.TelegramBotToken == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is required in production")
		}
		if c.CommunityChatID == 0 {
			return errors.New("COMMUNITY_CHAT_ID is required in production")
		}
		if c.SchedulerToken == "" || c.SchedulerToken == "local-scheduler-token" {
			return errors.New("SCHEDULER_TOKEN must be changed from the default value in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
