// Package config loads the CLI profile from ~/.cline/config.yaml, overridable
// with CLINE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	EngineURL string `mapstructure:"engine_url"`
	Token     string `mapstructure:"token"`
	Output    string `mapstructure:"output"`
}

func Default() *Config {
	return &Config{
		EngineURL: "http://localhost:8090",
		Output:    "table",
	}
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("engine_url", "http://localhost:8090")
	v.SetDefault("token", "")
	v.SetDefault("output", "table")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".cline"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CLINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && path != "" {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
