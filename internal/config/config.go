package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Gemini      GeminiConfig              `json:"gemini"`
	Security    SecurityConfig            `json:"security"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// StagingDir holds uploaded files while they are being ingested into a
	// file search store.
	StagingDir string `json:"staging_dir"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type GeminiConfig struct {
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

type SecurityConfig struct {
	// RulesPath optionally replaces the built-in filter rule set.
	RulesPath string `json:"rules_path"`
	// DisableFilter turns the query filter off for new sessions unless the
	// session asks for it explicitly. Filtering is on by default.
	DisableFilter bool `json:"disable_filter"`
}

const DefaultModel = "gemini-2.5-flash"

// Load reads configuration from the provided path (defaults to config.json)
// and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	if addr := os.Getenv("LEGALQUERY_ADDR"); addr != "" {
		cfg.BasicConfig.ServerAddress = addr
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultModel
	}
	if cfg.BasicConfig.StagingDir == "" {
		cfg.BasicConfig.StagingDir = "./data/staging"
	}

	return &cfg, nil
}

// Validate reports startup configuration errors before any connection is
// attempted.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return errors.New("gemini api key not configured: set GEMINI_API_KEY or gemini.api_key")
	}
	if len(c.Databases) == 0 {
		return errors.New("no database configured")
	}
	return nil
}
