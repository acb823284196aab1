package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/simulation"
)

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds all simulations in the project's cmd directory
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn walks dir for simulation.yaml files. Results are
// sorted by name.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "simulation.yaml" {
			return nil
		}

		cfg, err := simulation.LoadConfig(path)
		if err != nil {
			// Keep scanning past a broken descriptor
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, SimulationInfo{
			Path:   filepath.Dir(path),
			Config: *cfg,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(simulations, func(i, j int) bool {
		return simulations[i].Config.Name < simulations[j].Config.Name
	})
	return simulations, nil
}

// LoadParameterFile reads simulation parameters from a YAML map, for
// non-interactive runs.
func LoadParameterFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}

	params := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return params, nil
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
