// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"watertank-sim/internal/tank"
)

// Server holds listener settings.
type Server struct {
	HTTPAddr        string        `yaml:"http_addr"`
	WSAddr          string        `yaml:"ws_addr"` // empty serves the WebSocket on HTTPAddr at /ws
	WSPath          string        `yaml:"ws_path"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Simulation holds integration constants.
type Simulation struct {
	TimeStep float64 `yaml:"time_step"` // seconds
	Gravity  float64 `yaml:"gravity"`   // m/s²
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	Server     Server      `yaml:"server"`
	Limits     tank.Limits `yaml:"limits"`
	Simulation Simulation  `yaml:"simulation"`
	Log        Log         `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			HTTPAddr:        ":8080",
			WSAddr:          ":9000",
			WSPath:          "/",
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Limits:     tank.DefaultLimits(),
		Simulation: Simulation{TimeStep: 0.1, Gravity: 9.81},
		Log:        Log{Level: "info", Format: "text"},
	}
}

// Load reads configPath over the defaults, validates it against the CUE
// schema and applies environment overrides. An empty configPath yields the
// defaults; an empty schemaPath uses the embedded schema.
func Load(configPath, schemaPath string) (*Config, error) {
	cfg := Default()
	if configPath != "" {
		if err := ValidateWithCue(configPath, schemaPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot unmarshal config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from the environment.
func (c *Config) applyEnv() error {
	if v := os.Getenv("WATERTANK_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("WATERTANK_WS_ADDR"); ok {
		c.Server.WSAddr = v
	}
	if v := os.Getenv("TIME_STEP"); v != "" {
		step, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TIME_STEP: %w", err)
		}
		c.Simulation.TimeStep = step
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks values the schema cannot see, such as env overrides.
func (c *Config) Validate() error {
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if c.Simulation.TimeStep <= 0 {
		return fmt.Errorf("simulation.time_step must be positive, got %v", c.Simulation.TimeStep)
	}
	if c.Simulation.Gravity <= 0 {
		return fmt.Errorf("simulation.gravity must be positive, got %v", c.Simulation.Gravity)
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.WSAddr != "" && c.Server.WSAddr == c.Server.HTTPAddr {
		return fmt.Errorf("server.ws_addr must differ from server.http_addr; leave it empty to share the HTTP listener")
	}
	return nil
}
