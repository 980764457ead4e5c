/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/primefusion/pkg/logging"
	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// Config represents the primefusion configuration
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Security Security `yaml:"security"`
	Fusion   Fusion   `yaml:"fusion"`
	Logging  Logging  `yaml:"logging"`
}

// Security contains key material and API access configuration
type Security struct {
	APIKey string `yaml:"api_key"`
	// SessionKey is a hex static session key. Ignored when MasterKey is set.
	SessionKey string `yaml:"session_key,omitempty"`
	// MasterKey is a hex secret from which per-window session keys are derived.
	MasterKey string        `yaml:"master_key,omitempty"`
	KeyWindow time.Duration `yaml:"key_window"`
}

// Fusion contains trailer codec options
type Fusion struct {
	StrictTips bool `yaml:"strict_tips"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var (
	ErrNoKeyMaterial = errors.New("config: neither security.master_key nor security.session_key is set")
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Security: Security{
			KeyWindow: time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: logging.TextFormat,
		},
	}
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset fields keep their defaults.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks ports, key encodings and the key window.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.Security.KeyWindow < time.Second || c.Security.KeyWindow%time.Second != 0 {
		return fmt.Errorf("%w: key_window must be whole seconds, got %s", ErrInvalidConfig, c.Security.KeyWindow)
	}
	if _, err := decodeHexKey("session_key", c.Security.SessionKey); err != nil {
		return err
	}
	if _, err := decodeHexKey("master_key", c.Security.MasterKey); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SessionKeyBytes decodes the static session key; nil when unset.
func (c *Config) SessionKeyBytes() ([]byte, error) {
	return decodeHexKey("session_key", c.Security.SessionKey)
}

// MasterKeyBytes decodes the master key; nil when unset.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	return decodeHexKey("master_key", c.Security.MasterKey)
}

// KeySource builds the session key source the configuration describes.
// A master key takes precedence over a static session key.
func (c *Config) KeySource() (sessionkey.Source, error) {
	master, err := c.MasterKeyBytes()
	if err != nil {
		return nil, err
	}
	if master != nil {
		derived, err := sessionkey.NewDerived(master, c.Security.KeyWindow)
		if err != nil {
			return nil, err
		}
		return derived, nil
	}

	static, err := c.SessionKeyBytes()
	if err != nil {
		return nil, err
	}
	if static != nil {
		s, err := sessionkey.NewStatic(static)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, ErrNoKeyMaterial
}

func decodeHexKey(name, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not hex: %v", ErrInvalidConfig, name, err)
	}
	return key, nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with generated API and master keys
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	masterKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	config.Security.MasterKey = masterKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./primefusion.yaml"
	}

	// For Linux/macOS, use ~/.config/primefusion/config.yaml
	configDir := filepath.Join(homeDir, ".config", "primefusion")
	return filepath.Join(configDir, "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
