package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the cinder.toml interpreter configuration
type Config struct {
	Session SessionConfig `toml:"session"`
	Repl    ReplConfig    `toml:"repl"`
	Log     LogConfig     `toml:"log"`
}

// SessionConfig configures the scripting session itself
type SessionConfig struct {
	Bootstrap   bool     `toml:"bootstrap"`
	IncludePath []string `toml:"include-path"`
	Preload     []string `toml:"preload"` // files run before any input
	StepLimit   int64    `toml:"step-limit"`
}

// ReplConfig configures the interactive loop
type ReplConfig struct {
	Prompt  string `toml:"prompt"`
	Verbose bool   `toml:"verbose"` // print results as "(type) value"
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{Bootstrap: true},
		Repl:    ReplConfig{Prompt: "> ", Verbose: true},
		Log:     LogConfig{Level: "warn"},
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing
// file at the default location is not an error.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}
