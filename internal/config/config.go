package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for the mallocinfo sampling CLI. It never
// configures the introspection call itself, only how reports are
// rendered and recorded.
type Config struct {
	Sampler  SamplerConfig  `yaml:"sampler"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

type SamplerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Format   string        `yaml:"format"`
	TopHeaps int           `yaml:"top_heaps"`
}

type SnapshotConfig struct {
	Path         string        `yaml:"path"`
	SyncInterval time.Duration `yaml:"sync_interval"`
}

func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Interval: 10 * time.Second,
			Format:   "text",
			TopHeaps: 8,
		},
		Snapshot: SnapshotConfig{
			Path:         "mallocinfo.snapshots",
			SyncInterval: time.Second,
		},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("config: sampler interval must be positive, got %s", c.Sampler.Interval)
	}
	switch c.Sampler.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown format %q, want text or json", c.Sampler.Format)
	}
	if c.Sampler.TopHeaps < 0 {
		return fmt.Errorf("config: top_heaps must not be negative, got %d", c.Sampler.TopHeaps)
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("config: snapshot path must not be empty")
	}
	if c.Snapshot.SyncInterval <= 0 {
		return fmt.Errorf("config: snapshot sync_interval must be positive, got %s", c.Snapshot.SyncInterval)
	}
	return nil
}
