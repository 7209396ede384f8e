package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the smx configuration file (~/.config/smx/config.yaml).
// Numeric fields are pointers so we can distinguish "not set" from zero
// values.
type Config struct {
	Device string `yaml:"device"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`

	// Benchmark defaults
	BenchRows    *int64   `yaml:"bench_rows"`
	BenchCols    *int64   `yaml:"bench_cols"`
	BenchDensity *float64 `yaml:"bench_density"`
	BenchRuns    *int64   `yaml:"bench_runs"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "smx", "config.yaml")
}

// applyCommonConfig applies config file defaults to the shared command
// variables when the corresponding CLI flag was not explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.Device != "" && !c.IsSet("device") && !c.IsSet("d") {
		deviceName = cfg.Device
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// applyBenchConfig applies config file defaults to benchmark command
// variables.
func applyBenchConfig(c *cli.Command, cfg Config, rows, cols, runs *int64, density *float64) {
	applyCommonConfig(c, cfg)
	if cfg.BenchRows != nil && !c.IsSet("rows") {
		*rows = *cfg.BenchRows
	}
	if cfg.BenchCols != nil && !c.IsSet("cols") {
		*cols = *cfg.BenchCols
	}
	if cfg.BenchRuns != nil && !c.IsSet("runs") {
		*runs = *cfg.BenchRuns
	}
	if cfg.BenchDensity != nil && !c.IsSet("density") {
		*density = *cfg.BenchDensity
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
