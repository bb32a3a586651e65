package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/runemaster/resilience"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP client.
type Config struct {
	// Timeout bounds a single attempt. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Headers are applied to every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// MaxBodyBytes caps the response size. Zero means no cap.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	// Retry configures retry behavior. Nil disables retry.
	Retry *resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Retry != nil && c.Retry.RetryIf == nil {
		c.Retry.RetryIf = IsRetryable
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("httpclient: max_body_bytes must not be negative")
	}
	return nil
}

// DefaultRetryConfig returns a retry config that only retries transient
// HTTP failures.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}
