package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"
)

type ServerConfig struct {
	Port int `yaml:"port"`
}

type SigmaConfig struct {
	RedYellow   float64 `yaml:"red_yellow"`
	YellowGreen float64 `yaml:"yellow_green"`
	MaxSigma    float64 `yaml:"max_sigma"`
	MinSigma    float64 `yaml:"min_sigma"`
	DefaultName string  `yaml:"default_name"`
}

type ChartConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Sigma  SigmaConfig  `yaml:"sigma"`
	Chart  ChartConfig  `yaml:"chart"`
}

// Default returns the built-in configuration: the standard Six Sigma
// tiering (RED below 2.1, GREEN from 4.1), sigma clamped to +/-10 and an
// 800x320 chart served on port 8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Sigma: SigmaConfig{
			RedYellow:   2.1,
			YellowGreen: 4.1,
			MaxSigma:    10,
			MinSigma:    -10,
			DefaultName: "process",
		},
		Chart: ChartConfig{Width: 800, Height: 320},
	}
}

// LoadConfig reads a yaml config file, expands environment variable
// references and overlays it on the defaults. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Sigma.RedYellow >= c.Sigma.YellowGreen {
		return fmt.Errorf("red_yellow threshold (%v) must be below yellow_green (%v)", c.Sigma.RedYellow, c.Sigma.YellowGreen)
	}
	if c.Sigma.MaxSigma <= c.Sigma.YellowGreen {
		return fmt.Errorf("max_sigma (%v) must be above yellow_green (%v)", c.Sigma.MaxSigma, c.Sigma.YellowGreen)
	}
	if c.Sigma.MinSigma >= c.Sigma.RedYellow {
		return fmt.Errorf("min_sigma (%v) must be below red_yellow (%v)", c.Sigma.MinSigma, c.Sigma.RedYellow)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart dimensions must be positive, got %dx%d", c.Chart.Width, c.Chart.Height)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars substitutes ${VAR}, $VAR and ${VAR:-default} references.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[4]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if groups[2] != "" {
			return groups[3]
		}
		return ""
	})
}
