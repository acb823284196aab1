package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Transports an environment can use
const (
	TransportLiveKit  = "livekit"
	TransportRelay    = "relay"
	TransportLoopback = "loopback"
)

// DirName is the per-user configuration directory under $HOME
const DirName = ".squad-sim"

// Environment represents a room server the squad can be deployed to
type Environment struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Transport    string `yaml:"transport,omitempty"`
	Room         string `yaml:"room,omitempty"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
	APISecretEnv string `yaml:"api_secret_env,omitempty"`
}

// TransportOrDefault returns the configured transport, livekit when unset
func (e Environment) TransportOrDefault() string {
	if e.Transport == "" {
		return TransportLiveKit
	}
	return e.Transport
}

// NeedsCredentials reports whether joining requires signed tokens
func (e Environment) NeedsCredentials() bool {
	return e.TransportOrDefault() != TransportLoopback
}

// Validate checks the environment is usable
func (e Environment) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("environment name is required")
	}
	switch e.TransportOrDefault() {
	case TransportLiveKit, TransportRelay:
		if e.URL == "" {
			return fmt.Errorf("environment %s: url is required for %s transport", e.Name, e.TransportOrDefault())
		}
	case TransportLoopback:
	default:
		return fmt.Errorf("environment %s: unknown transport %q", e.Name, e.Transport)
	}
	return nil
}

// Config holds the environment configurations
type Config struct {
	Environments []Environment `yaml:"environments"`
	Selected     string        `yaml:"selected,omitempty"`
}

// Find returns the environment with the given name
func (c *Config) Find(name string) (Environment, bool) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return Environment{}, false
}

// Dir returns the per-user configuration directory
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LoadEnvironments loads environment configurations from the default location
func LoadEnvironments() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadEnvironmentsFromFile(filepath.Join(dir, "environments.yaml"))
}

// LoadEnvironmentsFromFile loads environment configurations from a specific file
func LoadEnvironmentsFromFile(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for _, env := range config.Environments {
		if err := env.Validate(); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

// SaveEnvironments saves the environment configuration
func SaveEnvironments(config *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return SaveEnvironmentsToFile(config, filepath.Join(dir, "environments.yaml"))
}

// SaveEnvironmentsToFile writes the environment configuration to path
func SaveEnvironmentsToFile(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getDefaultConfig returns a default configuration
func getDefaultConfig() *Config {
	return &Config{
		Environments: []Environment{
			{
				Name:      "Dry Run",
				Transport: TransportLoopback,
				Room:      "war-room",
			},
			{
				Name:         "Local LiveKit",
				URL:          "ws://localhost:7880",
				Transport:    TransportLiveKit,
				Room:         "war-room",
				APIKeyEnv:    "LIVEKIT_API_KEY",
				APISecretEnv: "LIVEKIT_API_SECRET",
			},
		},
	}
}
