// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/asio/internal/log"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `asio:` root key in YAML.
type GlobalConfig struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Echo    EchoConfig    `mapstructure:"echo"`
	Control ControlConfig `mapstructure:"control"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     log.Config    `mapstructure:"log"`
}

// ─── Listener ───

// ListenConfig selects the bound socket.
type ListenConfig struct {
	Port   int    `mapstructure:"port"`
	Family string `mapstructure:"family"` // ipv4 / ipv6, a v6 socket is dual stack
}

// ─── Echo Service ───

// EchoConfig tunes the service loop.
type EchoConfig struct {
	// Count is the number of replies to serve before a clean shutdown.
	// 0 serves forever.
	Count uint64 `mapstructure:"count"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings. An empty socket
// path disables the control server, an empty pid_file skips the pidfile.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `asio: ...`.
type configRoot struct {
	Asio GlobalConfig `mapstructure:"asio"`
}

// Load reads configuration from path, merged with environment overrides
// and defaults. The YAML file uses `asio:` as root key; env vars map
// through the key replacer (key "asio.log.level" → env "ASIO_LOG_LEVEL").
// An empty path skips the file entirely, the service is fully usable on
// defaults alone.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults carry the "asio." prefix to match the YAML root wrapper.
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Asio

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Listener defaults
	v.SetDefault("asio.listen.port", 4040)
	v.SetDefault("asio.listen.family", "ipv6")

	// Echo defaults
	v.SetDefault("asio.echo.count", 0)

	// Control defaults
	v.SetDefault("asio.control.socket", "/var/run/asio.sock")
	v.SetDefault("asio.control.pid_file", "/var/run/asio.pid")

	// Metrics defaults
	v.SetDefault("asio.metrics.enabled", true)
	v.SetDefault("asio.metrics.listen", ":9094")
	v.SetDefault("asio.metrics.path", "/metrics")

	// Log defaults. Warn keeps the service silent per datagram while
	// anomaly diagnostics stay visible; -v on the CLI raises it.
	v.SetDefault("asio.log.level", "warn")
	v.SetDefault("asio.log.pattern", "%time [%level] %msg")
	v.SetDefault("asio.log.time", "2006-01-02 15:04:05")
}

// ValidateAndApplyDefaults validates configuration and normalizes the
// family spelling.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "warning": true, "error": true,
	}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}

	if cfg.Listen.Port < 0 || cfg.Listen.Port > 65535 {
		return fmt.Errorf("invalid listen port: %d", cfg.Listen.Port)
	}

	family, err := NormalizeFamily(cfg.Listen.Family)
	if err != nil {
		return err
	}
	cfg.Listen.Family = family

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	return nil
}

// NormalizeFamily maps the accepted family spellings onto the canonical
// "ipv4" or "ipv6".
func NormalizeFamily(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4", "4", "inet":
		return "ipv4", nil
	case "ipv6", "6", "inet6":
		return "ipv6", nil
	}
	return "", fmt.Errorf("invalid address family %q (use ipv4 or ipv6)", s)
}
