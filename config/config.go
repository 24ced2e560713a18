package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the configuration for the upload agent
type Config struct {
	RecordingsDir string `json:"recordings_dir"`
	DatabasePath  string `json:"database_path"`
	LogPath       string `json:"log_path"`
	LogLevel      string `json:"log_level"`

	WebAddr string `json:"web_addr"`
	WebPort int    `json:"web_port"`
	APIKey  string `json:"api_key"`

	StorageURL    string `json:"storage_url"`
	StorageBucket string `json:"storage_bucket"`
	StorageAPIKey string `json:"storage_api_key"`
	StorageFolder string `json:"storage_folder"`
	DoHFallback   bool   `json:"doh_fallback"`

	LMSEnabled bool   `json:"lms_enabled"`
	LMSBaseURL string `json:"lms_base_url"`
	LMSAPIKey  string `json:"lms_api_key"`

	RetryIntervalMinutes int `json:"retry_interval_minutes"`
	RetentionDays        int `json:"retention_days"`
	WatchIntervalSeconds int `json:"watch_interval_seconds"`
	ProbeIntervalSeconds int `json:"probe_interval_seconds"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {

	appDir := "."

	homeDir, err := os.UserHomeDir()
	if err == nil && homeDir != "" {
		appDir = filepath.Join(homeDir, ".callrecorder")

		// Ensure the directory exists
		if err := os.MkdirAll(appDir, 0755); err != nil {
			appDir = "."
		}
	}

	return &Config{
		RecordingsDir:        filepath.Join(appDir, "recordings"),
		DatabasePath:         filepath.Join(appDir, "uploads.db"),
		LogPath:              filepath.Join(appDir, "logs"),
		LogLevel:             "info",
		WebAddr:              "127.0.0.1",
		WebPort:              8090,
		StorageBucket:        "recordings",
		StorageFolder:        "call-recordings",
		RetryIntervalMinutes: 5,
		RetentionDays:        7,
		WatchIntervalSeconds: 10,
		ProbeIntervalSeconds: 30,
	}
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "config.json"
	}
	return filepath.Join(homeDir, ".callrecorder", "config.json")
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file doesn't exist, we can proceed with the default config
			return config, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid web port: %d", c.WebPort)
	}
	if c.StorageURL == "" {
		return fmt.Errorf("storage_url is required")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("storage_bucket is required")
	}
	if c.LMSEnabled && c.LMSBaseURL == "" {
		return fmt.Errorf("lms_base_url is required when lms_enabled is set")
	}
	if c.RetryIntervalMinutes <= 0 {
		return fmt.Errorf("invalid retry interval: %d", c.RetryIntervalMinutes)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("invalid retention window: %d", c.RetentionDays)
	}
	return nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config file: %w", err)
	}

	return nil
}
