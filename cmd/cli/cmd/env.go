package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/squad-sim/pkg/auth"
	"github.com/picogrid/squad-sim/pkg/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage room server environments",
	Long:  `Manage the room servers squads can be deployed to`,
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured environments",
	RunE:  listEnvironments,
}

var envAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new environment",
	RunE:  addEnvironment,
}

var envUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Select the default environment",
	Args:  cobra.MaximumNArgs(1),
	RunE:  useEnvironment,
}

var envRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an environment",
	RunE:  removeEnvironment,
}

func init() {
	envCmd.AddCommand(envListCmd)
	envCmd.AddCommand(envAddCmd)
	envCmd.AddCommand(envUseCmd)
	envCmd.AddCommand(envRemoveCmd)
}

func listEnvironments(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	if len(cfg.Environments) == 0 {
		fmt.Println("No environments configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTRANSPORT\tURL\tROOM\tCREDENTIALS")
	_, _ = fmt.Fprintln(w, "----\t---------\t---\t----\t-----------")

	for _, env := range cfg.Environments {
		name := env.Name
		if name == cfg.Selected {
			name += " *"
		}
		room := env.Room
		if room == "" {
			room = DefaultRoom
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, env.TransportOrDefault(), orDash(env.URL), room, credentialsInfo(env))
	}

	return w.Flush()
}

func credentialsInfo(env config.Environment) string {
	if !env.NeedsCredentials() {
		return "-"
	}
	keyEnv, secretEnv := env.APIKeyEnv, env.APISecretEnv
	if keyEnv == "" {
		keyEnv = auth.DefaultKeyEnv
	}
	if secretEnv == "" {
		secretEnv = auth.DefaultSecretEnv
	}
	return fmt.Sprintf("$%s / $%s", keyEnv, secretEnv)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func addEnvironment(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	var env config.Environment

	// Prompt for name
	namePrompt := &survey.Input{
		Message: "Environment name:",
	}
	if err := survey.AskOne(namePrompt, &env.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	// Check if name already exists
	for _, existing := range cfg.Environments {
		if existing.Name == env.Name {
			return fmt.Errorf("environment %s already exists", env.Name)
		}
	}

	transportPrompt := &survey.Select{
		Message: "Transport:",
		Options: []string{config.TransportLiveKit, config.TransportRelay, config.TransportLoopback},
		Default: config.TransportLiveKit,
	}
	if err := survey.AskOne(transportPrompt, &env.Transport); err != nil {
		return err
	}

	if env.NeedsCredentials() {
		urlPrompt := &survey.Input{
			Message: "Room server URL:",
			Default: "ws://localhost:7880",
		}
		if err := survey.AskOne(urlPrompt, &env.URL, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	roomPrompt := &survey.Input{
		Message: "Room:",
		Default: DefaultRoom,
	}
	if err := survey.AskOne(roomPrompt, &env.Room); err != nil {
		return err
	}

	if env.NeedsCredentials() {
		keyPrompt := &survey.Input{
			Message: "API key environment variable:",
			Default: auth.DefaultKeyEnv,
			Help:    "Name of the environment variable that contains the API key",
		}
		if err := survey.AskOne(keyPrompt, &env.APIKeyEnv); err != nil {
			return err
		}
		secretPrompt := &survey.Input{
			Message: "API secret environment variable:",
			Default: auth.DefaultSecretEnv,
			Help:    "Name of the environment variable that contains the API secret",
		}
		if err := survey.AskOne(secretPrompt, &env.APISecretEnv); err != nil {
			return err
		}
	}

	if err := env.Validate(); err != nil {
		return err
	}

	// Add to config
	cfg.Environments = append(cfg.Environments, env)

	// Save config
	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}

	fmt.Printf("Environment %s added successfully\n", env.Name)
	return nil
}

func useEnvironment(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		names := make([]string, len(cfg.Environments))
		for i, env := range cfg.Environments {
			names[i] = env.Name
		}
		prompt := &survey.Select{
			Message: "Select default environment:",
			Options: names,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}
	}

	if _, ok := cfg.Find(selected); !ok {
		return fmt.Errorf("environment %s not found", selected)
	}
	cfg.Selected = selected

	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}

	fmt.Printf("Using environment %s\n", selected)
	return nil
}

func removeEnvironment(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadEnvironments()
	if err != nil {
		return fmt.Errorf("failed to load environments: %w", err)
	}

	if len(cfg.Environments) == 0 {
		fmt.Println("No environments to remove")
		return nil
	}

	// Build list of environment names
	names := make([]string, len(cfg.Environments))
	for i, env := range cfg.Environments {
		names[i] = env.Name
	}

	// Prompt for selection
	var selected string
	prompt := &survey.Select{
		Message: "Select environment to remove:",
		Options: names,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return err
	}

	// Confirm removal
	var confirm bool
	confirmPrompt := &survey.Confirm{
		Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
		Default: false,
	}
	if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
		return err
	}

	if !confirm {
		fmt.Println("Removal cancelled")
		return nil
	}

	// Remove from config
	newEnvs := make([]config.Environment, 0, len(cfg.Environments)-1)
	for _, env := range cfg.Environments {
		if env.Name != selected {
			newEnvs = append(newEnvs, env)
		}
	}
	cfg.Environments = newEnvs
	if cfg.Selected == selected {
		cfg.Selected = ""
	}

	// Save config
	if err := config.SaveEnvironments(cfg); err != nil {
		return fmt.Errorf("failed to save environments: %w", err)
	}

	fmt.Printf("Environment %s removed successfully\n", selected)
	return nil
}
