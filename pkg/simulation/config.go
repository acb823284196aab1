package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimulationConfig represents the configuration structure for a simulation
// loaded from simulation.yaml
type SimulationConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter for a simulation
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// LoadConfig reads a simulation.yaml file.
func LoadConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}

	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("simulation config %s has no name", path)
	}
	return &cfg, nil
}

// Defaults returns every parameter that declares a default.
func (c *SimulationConfig) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Parameters))
	for _, p := range c.Parameters {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}
