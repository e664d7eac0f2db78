// Package config loads driver-station settings from a Lua file. The
// file executes and returns a table, e.g.:
//
//	return {
//	    team = 3794,
//	    custom_socket_count = 0,
//	    addresses = { "10.37.94.2" },
//	    log_level = "info",
//	    metrics_addr = ":9090",
//	    interval_ms = 20,
//	}
package config

import (
	"fmt"
	"net"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

// Config holds the operator-editable settings.
type Config struct {
	Team              int
	CustomSocketCount int
	Addresses         []string // extra candidate robot addresses, probed first
	LogLevel          string
	MetricsAddr       string // empty disables the metrics endpoint
	IntervalMs        int    // control packet cadence
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Team:       0,
		LogLevel:   "info",
		IntervalMs: 20,
	}
}

// Load executes the Lua file at path and maps the returned table onto
// a Config. Zero values fall back to defaults.
func Load(path string) (*Config, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(path); err != nil {
		return nil, err
	}

	table, ok := L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("config %s did not return a table", path)
	}

	cfg := Default()
	if err := gluamapper.Map(table, cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Team < 0 {
		return fmt.Errorf("team must not be negative, got %d", cfg.Team)
	}
	if cfg.CustomSocketCount < 0 {
		return fmt.Errorf("custom_socket_count must not be negative, got %d", cfg.CustomSocketCount)
	}
	if cfg.IntervalMs < 0 {
		return fmt.Errorf("interval_ms must not be negative, got %d", cfg.IntervalMs)
	}
	for i, addr := range cfg.Addresses {
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("addresses[%d]: %q is not an IPv4 address", i, addr)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.IntervalMs == 0 {
		cfg.IntervalMs = 20
	}
}
