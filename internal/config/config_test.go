package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ATOM_CMD", "ATOM_TIMEOUT", "ATOM_SLICE_DEPTH", "ATOM_DB", "EVINSE_DB_DSN", "EVINSE_CONCURRENCY", "MAVEN_REPO", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cfg.Slicer.Command != "atom" {
		t.Errorf("slicer command = %q, want %q", cfg.Slicer.Command, "atom")
	}
	if cfg.Slicer.SliceDepth != 3 {
		t.Errorf("slice depth = %d, want 3", cfg.Slicer.SliceDepth)
	}
	if cfg.Store.File != "evinser.db" {
		t.Errorf("store file = %q, want %q", cfg.Store.File, "evinser.db")
	}
	if cfg.Language != "java" {
		t.Errorf("language = %q, want java", cfg.Language)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	content := `
language = "python"

[slicer]
command = "/opt/atom/bin/atom"
timeout = "90s"

[store]
dir = "/var/lib/evinse"
`
	path := filepath.Join(t.TempDir(), "evinse.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Language != "python" {
		t.Errorf("language = %q, want python", cfg.Language)
	}
	if cfg.Slicer.Command != "/opt/atom/bin/atom" {
		t.Errorf("command = %q", cfg.Slicer.Command)
	}
	if cfg.SlicerTimeout() != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", cfg.SlicerTimeout())
	}
	// untouched keys keep the embedded default
	if cfg.Slicer.SliceDepth != 3 {
		t.Errorf("slice depth = %d, want 3", cfg.Slicer.SliceDepth)
	}
	if got, want := cfg.StorePath(), filepath.Join("/var/lib/evinse", "evinser.db"); got != want {
		t.Errorf("store path = %q, want %q", got, want)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATOM_CMD", "atom-dev")
	t.Setenv("ATOM_SLICE_DEPTH", "7")
	t.Setenv("ATOM_DB", "/tmp/atomdb")
	t.Setenv("EVINSE_CONCURRENCY", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slicer.Command != "atom-dev" {
		t.Errorf("command = %q, want atom-dev", cfg.Slicer.Command)
	}
	if cfg.Slicer.SliceDepth != 7 {
		t.Errorf("slice depth = %d, want 7", cfg.Slicer.SliceDepth)
	}
	if cfg.Store.Dir != "/tmp/atomdb" {
		t.Errorf("store dir = %q", cfg.Store.Dir)
	}
	if cfg.Resolver.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", cfg.Resolver.Concurrency)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Default()
		if err != nil {
			t.Fatal(err)
		}
		cfg.SetDefaults()
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cases := map[string]func(*Config){
		"language":    func(c *Config) { c.Language = "cobol" },
		"timeout":     func(c *Config) { c.Slicer.Timeout = "soon" },
		"negative":    func(c *Config) { c.Slicer.Timeout = "-1s" },
		"depth":       func(c *Config) { c.Slicer.SliceDepth = 0 },
		"concurrency": func(c *Config) { c.Resolver.Concurrency = 0 },
		"cache":       func(c *Config) { c.Store.CacheSize = 0 },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDefaultStoreDir(t *testing.T) {
	if DefaultStoreDir() == "" {
		t.Error("DefaultStoreDir returned empty path")
	}
}
