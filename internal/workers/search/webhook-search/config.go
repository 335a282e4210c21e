// internal/workers/search/webhook-search/config.go
package webhooksearch

import (
	"time"

	"webhook-search/internal/common/config"
)

const DefaultJobTimeout = 30 * time.Second

type Config struct {
	// Timeout bounds one job end to end. It should exceed the webhook timeout.
	Timeout   time.Duration
	PageTitle string
}

// LoadConfig builds the handler config from the worker section, falling back
// to DefaultJobTimeout when no timeout is set.
func LoadConfig(wcfg config.WorkerConfig, pageTitle string) *Config {
	cfg := &Config{
		Timeout:   DefaultJobTimeout,
		PageTitle: pageTitle,
	}
	if wcfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return cfg
}
