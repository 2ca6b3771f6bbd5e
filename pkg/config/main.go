package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds everything read from data/config.yml.
type Config struct {
	Token       string `yaml:"token"`
	DatabaseURL string `yaml:"db"`
	Activity    string `yaml:"activity"`
	LogLevel    string `yaml:"log_level"`
}

// Load reads and validates the config file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Token == "" {
		return Config{}, fmt.Errorf("config %s: token is required", path)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config %s: db is required", path)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
