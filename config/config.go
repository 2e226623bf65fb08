package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v2"
)

// HostConfig configures the robocore host tool
type HostConfig struct {
	Device        string          `json:"device" yaml:"device"`
	Baud          int             `json:"baud" yaml:"baud"`
	ReadTimeoutMS int             `json:"read_timeout_ms" yaml:"read_timeout_ms"`
	Telemetry     TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Demo          DemoConfig      `json:"demo" yaml:"demo"`
}

// TelemetryConfig configures the HTTP server and report streaming
type TelemetryConfig struct {
	// Addr is the listen address; empty disables the server
	Addr string `json:"addr" yaml:"addr"`

	// StreamMS is the encoder report interval in milliseconds
	StreamMS int `json:"stream_ms" yaml:"stream_ms"`

	// RedisAddr, when set, also publishes reports to Redis
	RedisAddr   string `json:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix"`
}

// DemoConfig sets the key-driven demo step sizes
type DemoConfig struct {
	MotorStep int `json:"motor_step" yaml:"motor_step"`
	ServoStep int `json:"servo_step" yaml:"servo_step"`
}

// envOverrides are read from the environment after the file
type envOverrides struct {
	Device        string `env:"ROBOCORE_DEVICE"`
	Baud          int    `env:"ROBOCORE_BAUD"`
	TelemetryAddr string `env:"ROBOCORE_TELEMETRY_ADDR"`
	RedisAddr     string `env:"ROBOCORE_REDIS_ADDR"`
}

// Parse decodes a JSON or YAML document; format is "json" or "yaml"
func Parse(data []byte, format string) (*HostConfig, error) {
	var config HostConfig

	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, &config)
	case "yaml":
		err = yaml.Unmarshal(data, &config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// Load reads a config file, picking the format from its extension, then
// applies environment overrides. An empty path loads the defaults.
func Load(path string) (*HostConfig, error) {
	config := DefaultHostConfig()
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, err
		}

		format := "json"
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		}
		config, err = Parse(data, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config with any ROBOCORE_* variables that are set
func ApplyEnv(config *HostConfig) error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return err
	}

	if overrides.Device != "" {
		config.Device = overrides.Device
	}
	if overrides.Baud != 0 {
		config.Baud = overrides.Baud
	}
	if overrides.TelemetryAddr != "" {
		config.Telemetry.Addr = overrides.TelemetryAddr
	}
	if overrides.RedisAddr != "" {
		config.Telemetry.RedisAddr = overrides.RedisAddr
	}
	return nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *HostConfig) {
	if config.Device == "" {
		config.Device = "/dev/ttyACM0"
	}
	if config.Baud == 0 {
		config.Baud = 115200
	}
	if config.ReadTimeoutMS == 0 {
		config.ReadTimeoutMS = 100
	}
	if config.Telemetry.StreamMS == 0 {
		config.Telemetry.StreamMS = 50
	}
	if config.Demo.MotorStep == 0 {
		config.Demo.MotorStep = 1
	}
	if config.Demo.ServoStep == 0 {
		config.Demo.ServoStep = 5
	}
}

// DefaultHostConfig returns the built-in configuration
func DefaultHostConfig() *HostConfig {
	config := &HostConfig{}
	applyDefaults(config)
	return config
}
