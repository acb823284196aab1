package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/squad-sim/pkg/config"
	"github.com/picogrid/squad-sim/pkg/logger"
)

var (
	cfgFile  string
	envName  string
	envURL   string
	roomName string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "squad-sim",
	Short: "Squad simulation CLI",
	Long: `Squad Simulation CLI deploys a simulated squad of soldiers, tanks,
trucks and UAVs into a real-time room. Every entity streams a looping
video feed and publishes its GPS position on a shared clock.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+config.DirName+"/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment name to use")
	rootCmd.PersistentFlags().StringVar(&envURL, "url", "", "room server URL (overrides environment)")
	rootCmd.PersistentFlags().StringVar(&roomName, "room", "", "room to join (overrides environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
	_ = viper.BindPFlag("room", rootCmd.PersistentFlags().Lookup("room"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(rosterCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/" + config.DirName)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SQUAD")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	_ = viper.ReadInConfig()

	// Flags win; the config file and SQUAD_* fill in what was not given
	envName = viper.GetString("env")
	roomName = viper.GetString("room")
	logger.SetLevel(logger.ParseLevel(viper.GetString("log-level")))
	logger.SetNoColor(noColor)
}
