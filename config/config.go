package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Identifier extraction strategies.
const (
	// StrategyRemote uses the connection's remote address only.
	StrategyRemote = "remote"
	// StrategyProxy trusts CF-Connecting-IP, X-Real-IP and X-Forwarded-For.
	StrategyProxy = "proxy"
)

// Config holds the configuration for the ipguard middleware
type Config struct {
	// Threshold is the number of suspicious requests that triggers a block.
	Threshold int `koanf:"threshold" json:"threshold" validate:"gte=1"`

	// BlockDuration is how long an escalated identifier stays blocked.
	BlockDuration time.Duration `koanf:"block_duration" json:"block_duration" validate:"gt=0"`

	// TimeoutIncrease grows BlockDuration on repeat offenders: fixed, linear or geometric.
	TimeoutIncrease string `koanf:"timeout_increase" json:"timeout_increase" validate:"oneof=fixed linear geometric"`

	CleanupEnabled bool          `koanf:"cleanup_enabled" json:"cleanup_enabled"`
	SweepInterval  time.Duration `koanf:"sweep_interval" json:"sweep_interval" validate:"gt=0"`

	// IdleHorizon is how long a quiet identifier's counter is kept.
	IdleHorizon time.Duration `koanf:"idle_horizon" json:"idle_horizon" validate:"gt=0"`

	// IdentifierStrategy selects how a client identifier is derived from a request.
	IdentifierStrategy string `koanf:"identifier_strategy" json:"identifier_strategy" validate:"oneof=remote proxy"`

	Whitelist     []string `koanf:"whitelist" json:"whitelist" validate:"dive,ip"`
	Patterns      []string `koanf:"patterns" json:"patterns"`
	PathCacheSize int      `koanf:"path_cache_size" json:"path_cache_size" validate:"gte=0"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" json:"env" validate:"oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	ListenAddr string `koanf:"listen_addr" json:"listen_addr" validate:"required"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Threshold:          5,
		BlockDuration:      24 * time.Hour,
		TimeoutIncrease:    "fixed",
		CleanupEnabled:     true,
		SweepInterval:      time.Minute,
		IdleHorizon:        30 * time.Minute,
		IdentifierStrategy: StrategyRemote,
		Whitelist:          []string{},
		Patterns:           []string{},
		PathCacheSize:      1024,
		Env:                "prod",
		LogLevel:           "info",
		ListenAddr:         ":8080",
	}
}

// ValidateConfig sets defaults for missing or out of range values
func ValidateConfig(cfg *Config) {
	def := DefaultConfig()

	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = def.BlockDuration
	}
	if cfg.TimeoutIncrease != "fixed" && cfg.TimeoutIncrease != "linear" && cfg.TimeoutIncrease != "geometric" {
		cfg.TimeoutIncrease = def.TimeoutIncrease
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.IdleHorizon <= 0 {
		cfg.IdleHorizon = def.IdleHorizon
	}
	if cfg.IdentifierStrategy != StrategyRemote && cfg.IdentifierStrategy != StrategyProxy {
		cfg.IdentifierStrategy = def.IdentifierStrategy
	}
	if cfg.PathCacheSize < 0 {
		cfg.PathCacheSize = 0
	}
	if cfg.Env == "" {
		cfg.Env = def.Env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
}

// WithWhitelist returns a copy of c with ips added to the whitelist
func (c Config) WithWhitelist(ips ...string) Config {
	c.Whitelist = append(append([]string(nil), c.Whitelist...), ips...)
	return c
}

// WithPatterns returns a copy of c with extra probing path patterns
func (c Config) WithPatterns(patterns ...string) Config {
	c.Patterns = append(append([]string(nil), c.Patterns...), patterns...)
	return c
}

// envLoader loads IPGUARD_ prefixed variables. Keys are lowercased with the
// prefix removed; comma or space separated values become lists.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "IPGUARD_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "IPGUARD_"))
			value = strings.TrimSpace(value)

			if key == "whitelist" || key == "patterns" {
				return key, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return key, value
		},
	}), nil)
}

// defaultLoader loads DefaultConfig into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
}

// Load builds a Config from defaults overridden by the environment and
// validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
