package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Name != serviceName || cfg.Environment != "development" {
		t.Fatalf("service defaults: %+v", cfg.ServiceConfig)
	}
	if cfg.Logging.Output != "stderr" {
		t.Fatalf("logging output = %q", cfg.Logging.Output)
	}
	if cfg.GraphStore.Driver != DriverSQLite || !cfg.Database.Enabled || cfg.Database.DSN != defaultSQLiteDSN {
		t.Fatalf("graph store defaults: %+v %+v", cfg.GraphStore, cfg.Database)
	}
	if cfg.Redis.Enabled {
		t.Fatal("redis enabled without redis driver")
	}
	if cfg.Engine.MaxParallel != 1 {
		t.Fatalf("max_parallel = %d", cfg.Engine.MaxParallel)
	}
	if cfg.HTTPClient.Retry == nil || cfg.HTTPClient.Retry.RetryIf == nil {
		t.Fatal("http client retry not configured")
	}
	if cfg.Tracing.ServiceName != serviceName || cfg.Tracing.Enabled {
		t.Fatalf("tracing defaults: %+v", cfg.Tracing)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("server port = %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestConfig_RedisDriver(t *testing.T) {
	cfg := &Config{GraphStore: GraphStoreConfig{Driver: DriverRedis}}
	cfg.ApplyDefaults()
	if !cfg.Redis.Enabled || cfg.Database.Enabled {
		t.Fatalf("redis driver: redis=%v database=%v", cfg.Redis.Enabled, cfg.Database.Enabled)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.GraphStore.Driver = "mongo" }},
		{"max parallel out of range", func(c *Config) { c.Engine.MaxParallel = 100 }},
		{"bad environment", func(c *Config) { c.Environment = "moon" }},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }},
		{"negative body cap", func(c *Config) { c.HTTPClient.MaxBodyBytes = -1 }},
		{"s3 without bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Provider = "s3"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `
name: runemaster-test
graph_store:
  driver: memory
  traverse_on_load: true
engine:
  max_parallel: 2
storage:
  base_path: ` + filepath.Join(dir, "data") + `
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RUNEMASTER_ENGINE_MAX_PARALLEL", "4")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	cfg.ApplyDefaults()
	if cfg.Name != "runemaster-test" || cfg.GraphStore.Driver != DriverMemory || !cfg.GraphStore.TraverseOnLoad {
		t.Fatalf("file values not loaded: %+v", cfg.GraphStore)
	}
	if cfg.Engine.MaxParallel != 4 {
		t.Fatalf("env override not applied: max_parallel = %d", cfg.Engine.MaxParallel)
	}
	if cfg.Database.Enabled {
		t.Fatal("database enabled for memory driver")
	}
}
