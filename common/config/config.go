// Package config provides centralized configuration management for the intel enrichment engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigDir names the environment variable pointing at the config directory.
const EnvConfigDir = "INTEL_CONFIG_DIR"

// Config is the master configuration struct.
type Config struct {
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Enrichment  EnrichmentConfig  `mapstructure:"enrichment"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	Sinks       SinksConfig       `mapstructure:"sinks"`
	DLQ         DLQConfig         `mapstructure:"dlq"`
	SourceStats SourceStatsConfig `mapstructure:"source_stats"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`

	// Shared infrastructure configurations
	Influx  InfluxConfig  `mapstructure:"influx"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PipelineConfig controls batch intake and routing.
type PipelineConfig struct {
	DropDir       string        `mapstructure:"drop_dir"`
	ArchiveDir    string        `mapstructure:"archive_dir"`
	FileExtension string        `mapstructure:"file_extension"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Watch         bool          `mapstructure:"watch"`
	Workers       int           `mapstructure:"workers"`
}

// EnrichmentConfig holds the external lookup endpoints and their budgets.
type EnrichmentConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	RDAPURL          string        `mapstructure:"rdap_url"`
	CymruServer      string        `mapstructure:"cymru_server"` // DNS resolver for origin.asn.cymru.com, host:port
	OwnershipTimeout time.Duration `mapstructure:"ownership_timeout"`
	NominatimURL     string        `mapstructure:"nominatim_url"`
	GeocodeTimeout   time.Duration `mapstructure:"geocode_timeout"`
	WikidataEnabled  bool          `mapstructure:"wikidata_enabled"`
	WikidataURL      string        `mapstructure:"wikidata_url"`
	WikidataTimeout  time.Duration `mapstructure:"wikidata_timeout"`
	WikidataThrottle time.Duration `mapstructure:"wikidata_throttle"`
}

// CacheConfig selects the enrichment cache backend.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory" (default) or "redis"
	KeyPrefix  string        `mapstructure:"key_prefix"`
	TTL        time.Duration `mapstructure:"ttl"`         // 0 keeps entries for the process lifetime
	MaxEntries int           `mapstructure:"max_entries"` // memory backend only, 0 is unbounded
}

// ClassifierConfig points at optional data files overriding the built-in tables.
type ClassifierConfig struct {
	SectorTable string `mapstructure:"sector_table"`
	HomeBases   string `mapstructure:"home_bases"`
}

// SinksConfig lists the enabled point sinks.
type SinksConfig struct {
	Enabled            []string `mapstructure:"enabled"` // any of "influx", "nats", "stdout", "file"
	File               string   `mapstructure:"file"`
	Subject            string   `mapstructure:"subject"`
	SplitByMeasurement bool     `mapstructure:"split_by_measurement"` // nats: publish to <subject>.<measurement>
}

// DLQConfig holds dead letter queue configuration for rejected batches.
type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Backend  string `mapstructure:"backend"`   // "file" (default) or "nats"
	BasePath string `mapstructure:"base_path"` // Only used for file backend
	Subject  string `mapstructure:"subject"`   // Only used for nats backend
}

// SourceStatsConfig controls Redis-backed per-source intake statistics.
type SourceStatsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	InstanceID    string        `mapstructure:"instance_id"` // defaults to the hostname
}

// MetricsConfig controls the health and Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// InfluxConfig holds time-series store settings.
type InfluxConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Org     string        `mapstructure:"org"`
	Bucket  string        `mapstructure:"bucket"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or $INTEL_CONFIG_DIR/config.yaml when
// path is empty, and applies environment overrides.
// A missing config file is not an error; defaults and env vars still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path == "" {
		configDir := os.Getenv(EnvConfigDir)
		if configDir == "" {
			configDir = "/etc/telhawk-intel"
		}
		path = filepath.Join(configDir, "config.yaml")
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// INTEL_PIPELINE_DROP_DIR overrides pipeline.drop_dir
	v.SetEnvPrefix("INTEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q (supported: memory, redis)", c.Cache.Backend)
	}
	for _, s := range c.Sinks.Enabled {
		switch s {
		case "influx", "nats", "stdout", "file":
		default:
			return fmt.Errorf("unknown sink %q (supported: influx, nats, stdout, file)", s)
		}
	}
	return nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.drop_dir", "/var/lib/telhawk-intel/incoming")
	v.SetDefault("pipeline.archive_dir", "/var/lib/telhawk-intel/archive")
	v.SetDefault("pipeline.file_extension", ".json")
	v.SetDefault("pipeline.poll_interval", "10s")
	v.SetDefault("pipeline.watch", true)
	v.SetDefault("pipeline.workers", 1)

	// Enrichment defaults
	v.SetDefault("enrichment.user_agent", "telhawk-intel/1.0 (threat-intel enrichment)")
	v.SetDefault("enrichment.rdap_url", "https://rdap.org")
	v.SetDefault("enrichment.cymru_server", "") // empty uses the system resolver
	v.SetDefault("enrichment.ownership_timeout", "10s")
	v.SetDefault("enrichment.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("enrichment.geocode_timeout", "3s")
	v.SetDefault("enrichment.wikidata_enabled", true)
	v.SetDefault("enrichment.wikidata_url", "https://www.wikidata.org")
	v.SetDefault("enrichment.wikidata_timeout", "5s")
	v.SetDefault("enrichment.wikidata_throttle", "1s")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.key_prefix", "intel:enrich")
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.max_entries", 0)

	// Classifier defaults (empty means built-in tables)
	v.SetDefault("classifier.sector_table", "")
	v.SetDefault("classifier.home_bases", "")

	// Sink defaults
	v.SetDefault("sinks.enabled", []string{"influx"})
	v.SetDefault("sinks.file", "/var/lib/telhawk-intel/points.lp")
	v.SetDefault("sinks.subject", "intel.metrics.points")
	v.SetDefault("sinks.split_by_measurement", false)

	// DLQ defaults
	v.SetDefault("dlq.enabled", true)
	v.SetDefault("dlq.backend", "file")
	v.SetDefault("dlq.base_path", "/var/lib/telhawk-intel/dlq")
	v.SetDefault("dlq.subject", "intel.batches.rejected")

	// Source stats defaults (requires redis)
	v.SetDefault("source_stats.enabled", false)
	v.SetDefault("source_stats.flush_interval", "30s")
	v.SetDefault("source_stats.instance_id", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9095")

	// Influx defaults
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "telhawk_intel")
	v.SetDefault("influx.bucket", "ransomware_tracker")
	v.SetDefault("influx.timeout", "30s")

	// NATS defaults
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
