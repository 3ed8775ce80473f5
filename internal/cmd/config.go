package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server's YAML configuration. Environment variables override
// the file for deployment-specific values.
type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		PublicBaseURL string `yaml:"public_base_url"`
		HostKey       string `yaml:"host_key"`
	} `yaml:"server"`

	Game struct {
		QuestionDurationSec  int    `yaml:"question_duration_sec"`
		StartingCountdownSec int    `yaml:"starting_countdown_sec"`
		ResolveDelayMs       int    `yaml:"resolve_delay_ms"`
		QuestionsFile        string `yaml:"questions_file"`
	} `yaml:"game"`

	Relay struct {
		Enabled       bool   `yaml:"enabled"`
		NATSURL       string `yaml:"nats_url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"relay"`
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))
	config.Server.PublicBaseURL = getEnv("PUBLIC_BASE_URL", config.Server.PublicBaseURL)
	config.Server.HostKey = getEnv("HOST_KEY", config.Server.HostKey)
	config.Relay.NATSURL = getEnv("NATS_URL", defaultString(config.Relay.NATSURL, "nats://localhost:4222"))
	config.Game.ResolveDelayMs = getEnvAsInt("RESOLVE_DELAY_MS", config.Game.ResolveDelayMs)

	return &config, nil
}

// QuestionDuration returns the configured answer window, or zero to use the
// built-in default.
func (c *Config) QuestionDuration() time.Duration {
	return time.Duration(c.Game.QuestionDurationSec) * time.Second
}

// StartingCountdown returns the configured pre-match countdown, or zero to
// use the built-in default.
func (c *Config) StartingCountdown() time.Duration {
	return time.Duration(c.Game.StartingCountdownSec) * time.Second
}

// ResolveDelay returns the simulated timestamp resolution latency.
func (c *Config) ResolveDelay() time.Duration {
	return time.Duration(c.Game.ResolveDelayMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
