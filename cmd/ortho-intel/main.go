// Package main is the ortho-intel CLI: it runs a competitive intelligence
// analysis for up to five medical device competitors and prints the report.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ortho-intel",
	Short: "Competitive intelligence research for orthopedic device competitors",
	Long: `ortho-intel researches up to five medical device competitors on the web,
extracts clinical gaps and market opportunities, and asks a language model to
write up the findings.

Settings come from flags, ORTHO_INTEL_* environment variables, a .env file,
and an optional ortho-intel.yaml.`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ortho-intel.yaml or ~/.config/ortho-intel/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ortho-intel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ortho-intel"))
		}
	}

	configureEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configureEnv layers ORTHO_INTEL_* variables and defaults under the config file.
func configureEnv() {
	viper.SetEnvPrefix("ORTHO_INTEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindProviderEnv()
	setDefaults()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
