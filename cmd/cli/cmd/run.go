package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/squad-sim/pkg/auth"
	"github.com/picogrid/squad-sim/pkg/config"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/simulation"
	"github.com/picogrid/squad-sim/pkg/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long:  `Run a simulation interactively or with specified parameters`,
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().String("transport", "", "transport for --url (livekit, relay)")
	runCmd.Flags().Bool("dry-run", false, "join an in-process room instead of a server")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	env, err := selectEnvironment(cmd)
	if err != nil {
		return fmt.Errorf("failed to select environment: %w", err)
	}
	if roomName != "" {
		env.Room = roomName
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.LogSection(fmt.Sprintf("Environment: %s", env.Name))
	rt, err := buildRuntime(ctx, *env, auth.ResolveCredentials)
	if err != nil {
		return err
	}

	simName, err := selectSimulation(cmd)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	simConfig, err := findSimulationConfig(simName)
	if err != nil {
		return err
	}

	params, err := collectParameters(cmd, simConfig)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("Received interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	runErr := sim.Run(ctx, rt)

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cleanupCancel()
	cleanupRoom(cleanupCtx, rt, sim)

	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// collectParameters merges a --params file with SQUAD_* overrides and, unless
// prompts are disabled, interactive answers for whatever is still missing.
func collectParameters(cmd *cobra.Command, simConfig *simulation.SimulationConfig) (map[string]interface{}, error) {
	var preset map[string]interface{}
	if path, _ := cmd.Flags().GetString("params"); path != "" {
		loaded, err := utils.LoadParameterFile(path)
		if err != nil {
			return nil, err
		}
		preset = loaded
	}

	if preset != nil || utils.SkipPrompts() {
		return utils.ResolveParameters(simConfig.Parameters, preset)
	}
	return utils.PromptForParameters(simConfig.Parameters, preset)
}

func findSimulationConfig(name string) (*simulation.SimulationConfig, error) {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return nil, fmt.Errorf("failed to discover simulations: %w", err)
	}
	for _, info := range simInfos {
		if info.Config.Name == name {
			cfg := info.Config
			return &cfg, nil
		}
	}
	return nil, fmt.Errorf("simulation configuration not found for %s", name)
}

func selectEnvironment(cmd *cobra.Command) (*config.Environment, error) {
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return &config.Environment{Name: "Dry Run", Transport: config.TransportLoopback}, nil
	}

	transport, _ := cmd.Flags().GetString("transport")

	// URL from flag or environment variable
	url := envURL
	if url == "" {
		url = os.Getenv("SQUAD_URL")
	}
	if url != "" {
		return &config.Environment{
			Name:      "Custom",
			URL:       url,
			Transport: transport,
		}, nil
	}

	envConfig, err := config.LoadEnvironments()
	if err != nil {
		return nil, err
	}

	if envName == "" && utils.SkipPrompts() {
		envName = envConfig.Selected
	}
	if envName != "" {
		env, ok := envConfig.Find(envName)
		if !ok {
			return nil, fmt.Errorf("environment %s not found", envName)
		}
		return &env, nil
	}

	// Interactive selection
	options := make([]string, len(envConfig.Environments)+1)
	for i, env := range envConfig.Environments {
		options[i] = env.Name
	}
	options[len(options)-1] = "Custom URL"

	var selected string
	prompt := &survey.Select{
		Message: "Select environment:",
		Options: options,
		Default: envConfig.Selected,
	}
	if envConfig.Selected == "" {
		prompt.Default = nil
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, err
	}

	if selected == "Custom URL" {
		env := &config.Environment{Name: "Custom"}
		urlPrompt := &survey.Input{
			Message: "Room server URL:",
			Default: "ws://localhost:7880",
		}
		if err := survey.AskOne(urlPrompt, &env.URL, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
		transportPrompt := &survey.Select{
			Message: "Transport:",
			Options: []string{config.TransportLiveKit, config.TransportRelay},
			Default: config.TransportLiveKit,
		}
		if err := survey.AskOne(transportPrompt, &env.Transport); err != nil {
			return nil, err
		}
		return env, nil
	}

	env, ok := envConfig.Find(selected)
	if !ok {
		return nil, fmt.Errorf("environment not found")
	}
	return &env, nil
}

func selectSimulation(cmd *cobra.Command) (string, error) {
	simName, _ := cmd.Flags().GetString("simulation")
	if simName != "" {
		return simName, nil
	}

	registered := simulation.DefaultRegistry.List()
	if len(registered) == 1 || (utils.SkipPrompts() && len(registered) > 0) {
		return registered[0], nil
	}

	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return "", err
	}
	if len(simInfos) == 0 {
		return "", fmt.Errorf("no simulations found")
	}

	options := make([]string, len(simInfos))
	descriptions := make(map[string]string)
	for i, info := range simInfos {
		options[i] = info.Config.Name
		descriptions[info.Config.Name] = info.Config.Description
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: options,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}
