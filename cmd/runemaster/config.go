package main

import (
	"fmt"

	"github.com/kbukum/runemaster/config"
	"github.com/kbukum/runemaster/database"
	"github.com/kbukum/runemaster/httpclient"
	"github.com/kbukum/runemaster/observability"
	"github.com/kbukum/runemaster/redis"
	"github.com/kbukum/runemaster/server"
	"github.com/kbukum/runemaster/storage"
	"github.com/kbukum/runemaster/validation"
	"github.com/kbukum/runemaster/version"
)

const (
	serviceName = "runemaster"
	envPrefix   = "RUNEMASTER"
)

// Graph store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

const defaultSQLiteDSN = "runemaster.db"

// Config is the runemaster configuration file.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	GraphStore GraphStoreConfig           `yaml:"graph_store" mapstructure:"graph_store"`
	Database   database.Config            `yaml:"database" mapstructure:"database"`
	Redis      redis.Config               `yaml:"redis" mapstructure:"redis"`
	Storage    storage.Config             `yaml:"storage" mapstructure:"storage"`
	S3         ObjectStoreConfig          `yaml:"s3" mapstructure:"s3"`
	HTTPClient httpclient.Config          `yaml:"http_client" mapstructure:"http_client"`
	Engine     EngineConfig               `yaml:"engine" mapstructure:"engine"`
	Tracing    observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics    observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Server     server.Config              `yaml:"server" mapstructure:"server"`
}

// GraphStoreConfig selects where pipelines are persisted.
type GraphStoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver" validate:"oneof=memory sqlite redis"`
	// TraverseOnLoad rebuilds steps by walking edges instead of trusting
	// the stored step indices.
	TraverseOnLoad bool `yaml:"traverse_on_load" mapstructure:"traverse_on_load"`
}

// ObjectStoreConfig is the destination of ObjectUploadTask.
type ObjectStoreConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	storage.Config `yaml:",inline" mapstructure:",squash"`
}

// EngineConfig tunes pipeline execution.
type EngineConfig struct {
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel" validate:"gte=0,lte=64"`
}

// ApplyDefaults fills every section. The graph store driver decides which
// of database and redis is enabled.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().Version
	}
	if c.Logging.Output == "" {
		// stdout carries command output
		c.Logging.Output = "stderr"
	}
	c.ServiceConfig.ApplyDefaults()

	if c.GraphStore.Driver == "" {
		c.GraphStore.Driver = DriverSQLite
	}
	switch c.GraphStore.Driver {
	case DriverSQLite:
		c.Database.Enabled = true
		c.Database.AutoMigrate = true
		if c.Database.DSN == "" {
			c.Database.DSN = defaultSQLiteDSN
		}
	case DriverRedis:
		c.Redis.Enabled = true
	}
	if c.Database.Enabled {
		c.Database.ApplyDefaults()
	}
	if c.Redis.Enabled {
		c.Redis.ApplyDefaults()
	}

	c.Storage.ApplyDefaults()
	if c.S3.Enabled {
		if c.S3.Provider == "" {
			c.S3.Provider = storage.ProviderS3
		}
		c.S3.Config.ApplyDefaults()
	}
	if c.HTTPClient.Retry == nil {
		c.HTTPClient.Retry = httpclient.DefaultRetryConfig()
	}
	c.HTTPClient.ApplyDefaults()
	if c.Engine.MaxParallel == 0 {
		c.Engine.MaxParallel = 1
	}

	if c.Tracing.ServiceName == "" {
		enabled, endpoint := c.Tracing.Enabled, c.Tracing.Endpoint
		c.Tracing = observability.DefaultTracerConfig(c.Name)
		c.Tracing.Enabled = enabled
		if endpoint != "" {
			c.Tracing.Endpoint = endpoint
		}
	}
	if c.Metrics.ServiceName == "" {
		enabled, endpoint := c.Metrics.Enabled, c.Metrics.Endpoint
		c.Metrics = observability.DefaultMeterConfig(c.Name)
		c.Metrics.Enabled = enabled
		if endpoint != "" {
			c.Metrics.Endpoint = endpoint
		}
	}
	c.Tracing.ServiceVersion = c.Version
	c.Metrics.ServiceVersion = c.Version
	c.Tracing.Environment = c.Environment
	c.Metrics.Environment = c.Environment

	c.Server.ApplyDefaults()
}

// Validate checks struct tags first, then each section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if c.Database.Enabled {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("config.database: %w", err)
		}
	}
	if c.Redis.Enabled {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("config.redis: %w", err)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("config.storage: %w", err)
	}
	if c.S3.Enabled {
		if err := c.S3.Config.Validate(); err != nil {
			return fmt.Errorf("config.s3: %w", err)
		}
	}
	if err := c.HTTPClient.Validate(); err != nil {
		return fmt.Errorf("config.http_client: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	return nil
}

// loadConfig reads config.yml (or path), the .env file and RUNEMASTER_*
// environment variables.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	opts := []config.LoaderOption{config.WithEnvPrefix(envPrefix)}
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
