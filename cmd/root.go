// Package cmd provides the whiteboard command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// WHITEBOARD_<SECTION>_<OPTION> environment variables (a .env file in the
// working directory is loaded into the environment first), and the
// configuration file: --config, WHITEBOARD_CONFIG_FILE, or .whiteboard.yml in
// the working directory.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/whiteboard/internal/config"
	"github.com/conneroisu/whiteboard/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "whiteboard",
	Short: "Serve and render module-driven HTML pages",
	Long: `Whiteboard runs an HTML page as an application: elements marked as modules
are started from registered factories, routes render templates into the
root element, and modules talk to each other by broadcast.

Quick Start:
  whiteboard init              Write a starter page and configuration
  whiteboard serve             Run the page in the browser with live reload
  whiteboard render /notes     Print the page as routed at /notes
  whiteboard routes            List the configured routes`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .whiteboard.yml, can also use WHITEBOARD_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".whiteboard")
	}

	config.BindEnv(viper.GetViper())

	// A missing file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and a logger built from its log
// section.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logging.NewLogger(cfg.Log.LoggerConfig()), nil
}
