// Package config loads the settings shared by the feed server and follower.
// Environment variables override the YAML file, which overrides defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
	"github.com/jarvis394/snapshot-interpolation/interp"
	"github.com/jarvis394/snapshot-interpolation/logging"
	"github.com/jarvis394/snapshot-interpolation/vault"
)

const envPrefix = "SNAPINTERP_"

// Config is the top-level configuration.
type Config struct {
	Collection string            `yaml:"collection" validate:"required"`
	Methods    map[string]string `yaml:"methods" validate:"required,min=1,dive,oneof=linear deg rad quat"`
	Vault      VaultConfig       `yaml:"vault"`
	Engine     EngineConfig      `yaml:"engine"`
	Server     ServerConfig      `yaml:"server"`
	Follow     FollowConfig      `yaml:"follow"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// VaultConfig sizes the snapshot history.
type VaultConfig struct {
	Capacity int `yaml:"capacity" validate:"gte=1"`
}

// EngineConfig controls the render delay. A zero LagBuffer derives the lag
// from ServerFPS.
type EngineConfig struct {
	ServerFPS float64       `yaml:"server_fps" validate:"gt=0"`
	LagBuffer time.Duration `yaml:"lag_buffer" validate:"gte=0"`
}

// ServerConfig controls the snapshot feed server.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	TickRate     float64       `yaml:"tick_rate" validate:"gt=0"`
	Entities     int           `yaml:"entities" validate:"gte=1,lte=10000"`
	Replay       int           `yaml:"replay" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	Pprof        bool          `yaml:"pprof"`
}

// FollowConfig controls the follower.
type FollowConfig struct {
	URL        string  `yaml:"url" validate:"required,url"`
	RenderRate float64 `yaml:"render_rate" validate:"gt=0"`
}

// LoggingConfig selects log sinks.
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSONPath string `yaml:"json_path"`
	UseColor bool   `yaml:"use_color"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set on the follower.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg := Config{Logging: LoggingConfig{UseColor: true}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "entities"
	}
	if len(c.Methods) == 0 {
		c.Methods = map[string]string{
			"x":           string(interp.MethodLinear),
			"y":           string(interp.MethodLinear),
			"heading":     string(interp.MethodDeg),
			"spin":        string(interp.MethodRad),
			"orientation": string(interp.MethodQuat),
		}
	}
	if c.Vault.Capacity == 0 {
		c.Vault.Capacity = vault.DefaultCapacity
	}
	if c.Engine.ServerFPS == 0 {
		c.Engine.ServerFPS = 20
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.TickRate == 0 {
		c.Server.TickRate = c.Engine.ServerFPS
	}
	if c.Server.Entities == 0 {
		c.Server.Entities = 8
	}
	if c.Server.Replay == 0 {
		c.Server.Replay = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Second
	}
	if c.Follow.URL == "" {
		c.Follow.URL = "ws://localhost:8080/feed"
	}
	if c.Follow.RenderRate == 0 {
		c.Follow.RenderRate = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path (when non-empty), applies SNAPINTERP_* environment overrides
// and validates the result. Invalid override values are reported through
// logger and otherwise ignored.
func Load(path string, logger telemetry.Logger) (Config, error) {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		// File methods replace the defaults instead of merging into them.
		cfg.Methods = nil
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.applyDefaults()
	}

	applyEnv(&cfg, logger)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EngineMethods converts the configured method names.
func (c Config) EngineMethods() (interp.Methods, error) {
	methods := make(interp.Methods, len(c.Methods))
	for field, name := range c.Methods {
		method, err := interp.ParseMethod(name)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		methods[field] = method
	}
	return methods, nil
}

// EngineOptions returns the engine options implied by the configuration.
func (c Config) EngineOptions() []interp.Option {
	opts := []interp.Option{
		interp.WithCapacity(c.Vault.Capacity),
		interp.WithServerFPS(c.Engine.ServerFPS),
	}
	if c.Engine.LagBuffer > 0 {
		opts = append(opts, interp.WithLagBuffer(c.Engine.LagBuffer))
	}
	return opts
}

// RouterConfig translates the logging section into router settings.
func (c Config) RouterConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.ParseSeverity(c.Logging.Level)
	cfg.Console.UseColor = c.Logging.UseColor
	cfg.JSON.Path = c.Logging.JSONPath
	return cfg
}

func applyEnv(cfg *Config, logger telemetry.Logger) {
	envString(envPrefix+"COLLECTION", &cfg.Collection)
	envInt(envPrefix+"VAULT_CAPACITY", &cfg.Vault.Capacity, logger)
	envFloat(envPrefix+"SERVER_FPS", &cfg.Engine.ServerFPS, logger)
	envDuration(envPrefix+"LAG_BUFFER", &cfg.Engine.LagBuffer, logger)
	envString(envPrefix+"ADDR", &cfg.Server.Addr)
	envFloat(envPrefix+"TICK_RATE", &cfg.Server.TickRate, logger)
	envInt(envPrefix+"ENTITIES", &cfg.Server.Entities, logger)
	envInt(envPrefix+"REPLAY", &cfg.Server.Replay, logger)
	envString(envPrefix+"FOLLOW_URL", &cfg.Follow.URL)
	envFloat(envPrefix+"RENDER_RATE", &cfg.Follow.RenderRate, logger)
	envString(envPrefix+"LOG_LEVEL", &cfg.Logging.Level)
	envString(envPrefix+"LOG_JSON", &cfg.Logging.JSONPath)
	envString(envPrefix+"METRICS_ADDR", &cfg.Metrics.Addr)
	envBool(envPrefix+"LOG_COLOR", &cfg.Logging.UseColor, logger)
	envBool(envPrefix+"PPROF", &cfg.Server.Pprof, logger)
}

func envBool(key string, dst *bool, logger telemetry.Logger) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			*dst = value
		} else {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
		}
	}
}

func envString(key string, dst *string) {
	if raw := os.Getenv(key); raw != "" {
		*dst = raw
	}
}

func envInt(key string, dst *int, logger telemetry.Logger) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			*dst = value
		} else {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
		}
	}
}

func envFloat(key string, dst *float64, logger telemetry.Logger) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			*dst = value
		} else {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
		}
	}
}

func envDuration(key string, dst *time.Duration, logger telemetry.Logger) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil {
			*dst = value
		} else {
			logger.Printf("invalid %s=%q: %v", key, raw, err)
		}
	}
}
