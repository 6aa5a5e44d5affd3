// Package config loads evinse settings from the embedded defaults, an
// optional TOML file, a .env file and the process environment.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed default_config.toml
var embeddedConfigData []byte

// Languages accepted by the slicer front end.
var Languages = []string{"java", "jar", "javascript", "python", "android", "cpp"}

// Config holds the application configuration.
type Config struct {
	Language  string          `toml:"language"`
	Slicer    SlicerConfig    `toml:"slicer"`
	Store     StoreConfig     `toml:"store"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Collector CollectorConfig `toml:"collector"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// SlicerConfig controls invocation of the external slicer.
type SlicerConfig struct {
	Command    string `toml:"command"`
	Timeout    string `toml:"timeout"`
	SliceDepth int    `toml:"slice_depth"`
}

// StoreConfig locates the namespace store.
type StoreConfig struct {
	Dir       string `toml:"dir"`
	File      string `toml:"file"`
	DSN       string `toml:"dsn"`
	CacheSize int    `toml:"cache_size"`
}

// ResolverConfig bounds concurrent store lookups.
type ResolverConfig struct {
	Concurrency int `toml:"concurrency"`
}

// CollectorConfig points at the local maven repository.
type CollectorConfig struct {
	MavenRepo string `toml:"maven_repo"`
}

// TelemetryConfig configures OTLP span export.
type TelemetryConfig struct {
	OTELEndpoint string `toml:"otel_endpoint"`
	OTELInsecure bool   `toml:"otel_insecure"`
	OTELService  string `toml:"otel_service"`
}

// Default returns the embedded configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(embeddedConfigData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	return &cfg, nil
}

// Load builds the effective configuration: embedded defaults, then the TOML
// file at path (if non-empty), then .env and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	cfg.LoadFromEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies environment overrides.
func (c *Config) LoadFromEnv() {
	if v := strings.TrimSpace(os.Getenv("ATOM_CMD")); v != "" {
		c.Slicer.Command = v
	}
	if v := strings.TrimSpace(os.Getenv("ATOM_TIMEOUT")); v != "" {
		c.Slicer.Timeout = v
	}
	if v := strings.TrimSpace(os.Getenv("ATOM_SLICE_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Slicer.SliceDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ATOM_DB")); v != "" {
		c.Store.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("EVINSE_DB_DSN")); v != "" {
		c.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("EVINSE_CONCURRENCY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resolver.Concurrency = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAVEN_REPO")); v != "" {
		c.Collector.MavenRepo = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.OTELEndpoint = v
	}
}

// SetDefaults fills values that depend on the host.
func (c *Config) SetDefaults() {
	if c.Language == "" {
		c.Language = "java"
	}
	if c.Slicer.Command == "" {
		c.Slicer.Command = "atom"
	}
	if c.Slicer.Timeout == "" {
		c.Slicer.Timeout = "20m"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = DefaultStoreDir()
	}
	if c.Store.File == "" {
		c.Store.File = "evinser.db"
	}
	if c.Collector.MavenRepo == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Collector.MavenRepo = filepath.Join(home, ".m2", "repository")
		}
	}
	if c.Telemetry.OTELService == "" {
		c.Telemetry.OTELService = "evinse"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !IsSupportedLanguage(c.Language) {
		return fmt.Errorf("unsupported language %q (supported: %s)", c.Language, strings.Join(Languages, ", "))
	}
	d, err := time.ParseDuration(c.Slicer.Timeout)
	if err != nil {
		return fmt.Errorf("slicer timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("slicer timeout must be positive")
	}
	if c.Slicer.SliceDepth < 1 {
		return fmt.Errorf("slice_depth must be at least 1")
	}
	if c.Resolver.Concurrency < 1 {
		return fmt.Errorf("resolver concurrency must be at least 1")
	}
	if c.Store.CacheSize < 1 {
		return fmt.Errorf("store cache_size must be at least 1")
	}
	return nil
}

// SlicerTimeout returns the parsed slicer timeout. Call after Validate.
func (c *Config) SlicerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Slicer.Timeout)
	return d
}

// StorePath returns the sqlite file backing the namespace store.
func (c *Config) StorePath() string {
	return filepath.Join(c.Store.Dir, c.Store.File)
}

// IsSupportedLanguage reports whether lang is one of Languages.
func IsSupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// DefaultStoreDir returns the platform application-data directory used for
// the namespace store.
func DefaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".atomdb")
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", ".atomdb")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", ".atomdb")
	default:
		return filepath.Join(home, ".local", "share", ".atomdb")
	}
}
