package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Port:                "8390",
		Env:                 "development",
		DBPassword:          "password",
		RedisURL:            "localhost:6379",
		MaxIssuanceAttempts: 50,
		RetryFallbackSecs:   10,
		SchedulerToken:      "local-scheduler-token",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"development defaults are fine", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"zero attempt ceiling", func(c *Config) { c.MaxIssuanceAttempts = 0 }, true},
		{"zero retry fallback", func(c *Config) { c.RetryFallbackSecs = 0 }, true},
		{"production without bot token", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "strong-password"
			c.SchedulerToken = "rotated-token"
			c.CommunityChatID = -100123
		}, true},
		{"production with default scheduler token", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "strong-password"
			c.TelegramBotToken = "123:abc"
			c.CommunityChatID = -100123
		}, true},
		{"production with weak db password", func(c *Config) {
			c.Env = "production"
			c.TelegramBotToken = "123:abc"
			c.SchedulerToken = "rotated-token"
			c.CommunityChatID = -100123
		}, true},
		{"production fully configured", func(c *Config) {
			c.Env = "production"
			c.TelegramBotToken = "123:abc"
			c.SchedulerToken = "rotated-token"
			c.DBPassword = "strong-password"
			c.CommunityChatID = -100123
			c.DBSSLMode = "require"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
