package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend struct {
		URL     string        `mapstructure:"url"`     // Base URL of the /api/* server
		Timeout time.Duration `mapstructure:"timeout"` // Per request
	} `mapstructure:"backend"`

	Review struct {
		SaveDelay        time.Duration `mapstructure:"save_delay"`        // Quiet period before an edit is written
		DefaultSort      string        `mapstructure:"default_sort"`      // "category" or "count"
		SuggestionLimit  int           `mapstructure:"suggestion_limit"`  // 0 = unlimited
		GlobalCategories bool          `mapstructure:"global_categories"` // Also suggest categories of other datasets
	} `mapstructure:"review"`

	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("review.save_delay", 500*time.Millisecond)
	v.SetDefault("review.default_sort", "category")
	v.SetDefault("review.suggestion_limit", 8)
	v.SetDefault("review.global_categories", true)
	v.SetDefault("server.addr", "localhost")
	v.SetDefault("server.port", "8081")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory (or the file
// named by path) and applies ANNOTATE_* environment overrides, e.g.
// ANNOTATE_BACKEND_URL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".") // Look for config.yaml in the current directory
	}

	v.SetEnvPrefix("ANNOTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}
