package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/pkg/errors"

	"github.com/solweir/parley/internal/file"
)

var defaultConfig = Config{
	Password: "",

	Store: &StoreConfig{
		Backend: "rest",
		URL:     "https://example.supabase.co",
		APIKey:  "API_KEY",
		Path:    "~/.config/parley/parley.db",
	},

	Agent: &AgentConfig{
		URL:            "http://localhost:8000",
		APIKey:         "API_KEY",
		DefaultAgent:   "chat_deepseek_v3",
		RequestTimeout: 60,
	},

	Chat: &ChatConfig{
		PollIntervalMilliseconds: 1000,
	},
}

// Config holds configuration for the parley tool.
type Config struct {
	// Shared password gating the UI. Empty disables the prompt.
	Password string `json:"password"`

	Store *StoreConfig `json:"store"`
	Agent *AgentConfig `json:"agent"`
	Chat  *ChatConfig  `json:"chat"`
}

// StoreConfig holds configuration for the conversation store.
type StoreConfig struct {
	// One of "rest", "sqlite", "postgres".
	Backend string `json:"backend"`
	// Base URL of the REST backend.
	URL string `json:"url"`
	// API key for the REST backend.
	APIKey string `json:"api_key"`
	// Database file path for the sqlite backend.
	Path string `json:"path"`
	// Connection string for the postgres backend.
	PostgresDSN string `json:"postgres_dsn"`
}

// AgentConfig holds configuration for the agent service.
type AgentConfig struct {
	// Base URL of the agent service.
	URL string `json:"url"`
	// API key sent in the X-API-Key header.
	APIKey string `json:"api_key"`
	// The agent invoked when none is specified.
	DefaultAgent string `json:"default_agent"`
	// Request timeout in seconds.
	RequestTimeout int `json:"request_timeout"`
}

// ChatConfig holds configuration for the chat UI.
type ChatConfig struct {
	// Interval between polls for an out-of-band assistant reply.
	PollIntervalMilliseconds int `json:"poll_interval_ms"`
}

// Parse a configuration file.
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}

	// Fill anything the user's file omits with the defaults.
	if err := mergo.Merge(config, defaultConfig); err != nil {
		return nil, errors.Wrap(err, "merging defaults")
	}

	expandedStorePath, err := file.ExpandPath(config.Store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding store path")
	}
	config.Store.Path = expandedStorePath
	return config, nil
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
