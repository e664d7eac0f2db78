package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qds.lua")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
return {
    team = 3794,
    custom_socket_count = 8,
    addresses = { "10.37.94.2", "10.37.94.3" },
    log_level = "debug",
    metrics_addr = ":9090",
    interval_ms = 50,
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Team != 3794 {
		t.Errorf("Team = %d, want 3794", cfg.Team)
	}
	if cfg.CustomSocketCount != 8 {
		t.Errorf("CustomSocketCount = %d, want 8", cfg.CustomSocketCount)
	}
	if len(cfg.Addresses) != 2 || cfg.Addresses[0] != "10.37.94.2" {
		t.Errorf("Addresses = %v", cfg.Addresses)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.IntervalMs != 50 {
		t.Errorf("IntervalMs = %d, want 50", cfg.IntervalMs)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `return { team = 254 }`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info default", cfg.LogLevel)
	}
	if cfg.IntervalMs != 20 {
		t.Errorf("IntervalMs = %d, want 20 default", cfg.IntervalMs)
	}
}

func TestLoad_RejectsBadAddress(t *testing.T) {
	path := writeConfig(t, `return { addresses = { "not-an-ip" } }`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a non-IPv4 address")
	}
}

func TestLoad_RejectsNegativeTeam(t *testing.T) {
	path := writeConfig(t, `return { team = -1 }`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a negative team")
	}
}

func TestLoad_RejectsNonTable(t *testing.T) {
	path := writeConfig(t, `return 42`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a non-table config")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.lua")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Team != 0 || cfg.LogLevel != "info" || cfg.IntervalMs != 20 {
		t.Errorf("Default() = %+v", cfg)
	}
}
