// Package cmd provides the command-line interface for refract with
// configuration management supporting multiple sources.
//
// Configuration precedence, highest first:
//  1. Command-line flags (--config, --port, ...)
//  2. REFRACT_CONFIG_FILE environment variable
//  3. Individual environment variables (REFRACT_SERVER_PORT, ...)
//  4. Configuration file (.refract.yml)
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "refract",
	Short: "A transform cache and live-refresh dev server for component modules",
	Long: `Refract compiles typed component sources (.tsx, .ts, .jsx) through an
external single-file transformer, keeps compiled results in a disk-backed
cache that survives restarts, and instruments serve-mode output for
state-preserving live refresh.

Quick Start:
  refract init                    Write a default .refract.yml
  refract serve                   Start the development server
  refract build                   Show the production build contribution
  refract cache stats             Inspect the transform cache`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .refract.yml, can also use REFRACT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("root", ".", "project root directory")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
}

// initConfig wires viper's config sources together.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("REFRACT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".refract")
		viper.SetConfigType("yml")
	}

	viper.SetEnvPrefix("REFRACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults cover everything.
	_ = viper.ReadInConfig()
}
