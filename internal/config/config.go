package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL          string `yaml:"api_url"`
	SessionFile     string `yaml:"session_file"`
	SessionTTLHours int    `yaml:"session_ttl_hours"`
	Port            int    `yaml:"port"`
	LogLevel        string `yaml:"log_level"`
	NatsURL         string `yaml:"nats_url"`
	NatsToken       string `yaml:"nats_token"`
	DatabaseURL     string `yaml:"database_url"`
	ConversationID  string `yaml:"conversation"`
}

// Load builds the configuration from defaults, then the YAML file named by
// FLOWCHAT_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := Config{
		APIURL:          "http://localhost:5137",
		SessionFile:     defaultSessionFile(),
		SessionTTLHours: 24,
		Port:            8760,
		LogLevel:        "info",
		ConversationID:  "testchat",
	}

	if path := os.Getenv("FLOWCHAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.APIURL = envStr("FLOWCHAT_API_URL", cfg.APIURL)
	cfg.SessionFile = envStr("FLOWCHAT_SESSION_FILE", cfg.SessionFile)
	cfg.SessionTTLHours = envInt("FLOWCHAT_SESSION_TTL_HOURS", cfg.SessionTTLHours)
	cfg.Port = envInt("FLOWCHAT_PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.ConversationID = envStr("FLOWCHAT_CONVERSATION", cfg.ConversationID)
	return cfg, nil
}

// SessionTTL is how long a login stays valid. Zero or negative hours means
// the session never expires locally.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "flowchat-session.json"
	}
	return filepath.Join(home, ".config", "flowchat", "session.json")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
