package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clearline-systems/clearline-engine/cli/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cline",
	Short: "Clearline engine CLI",
	Long: `cline is the command-line interface for the Clearline validation engine.

Submit report batches, inspect batch results, and manage the declarative
schemas the engine validates against.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.cline/config.yaml)")
	rootCmd.PersistentFlags().String("engine-url", "", "engine API base URL")
	rootCmd.PersistentFlags().String("token", "", "bearer token for the engine API")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// engineURL resolves the flag-over-config precedence for the API base URL.
func engineURL(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("engine-url"); v != "" {
		return v
	}
	return cfg.EngineURL
}

func apiToken(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		return v
	}
	return cfg.Token
}

func outputFormat(cmd *cobra.Command) string {
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		return v
	}
	if cfg.Output != "" {
		return cfg.Output
	}
	return "table"
}
