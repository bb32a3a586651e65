package bootstrap

import (
	"github.com/kbukum/runemaster/config"
)

// Config is the constraint for application configuration types. A pointer to
// a struct embedding config.ServiceConfig satisfies it once the struct adds
// its own ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
