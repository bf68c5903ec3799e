// Package config provides configuration for the rehire command.
//
// Values are read from an optional YAML file, then from environment
// variables, which take precedence:
//
//	REHIRE_DIR        directory relative specifiers are resolved against
//	REHIRE_LUA_PATH   ";" separated module search templates, e.g. "?.lua;?/init.lua"
//	REHIRE_LOG_LEVEL  debug, info, warn, or error
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config controls the rehire command.
type Config struct {
	Dir      string   `env:"REHIRE_DIR"       yaml:"dir"`
	LuaPath  []string `env:"REHIRE_LUA_PATH"  yaml:"lua_path"  envSeparator:";"`
	LogLevel string   `env:"REHIRE_LOG_LEVEL" yaml:"log_level"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		Dir:      ".",
		LuaPath:  []string{"?.lua", "?/init.lua"},
		LogLevel: "warn",
	}
}

// Load reads the YAML file at path, if path isn't empty, and applies
// environment variables on top.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Dir == "" {
		c.Dir = def.Dir
	}
	if len(c.LuaPath) == 0 {
		c.LuaPath = def.LuaPath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// Logger builds a console logger writing to stderr at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
