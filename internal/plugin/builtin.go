package plugin

import (
	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
)

// NewFromConfig creates a manager with the built-in plugins enabled in cfg.
// The rate limiter, when enabled, is returned so the caller can release the
// buckets of closed connections.
func NewFromConfig(cfg config.PluginsConfig, logger logging.Logger) (*Manager, *RateLimiter) {
	m := NewManager(logger)

	var limiter *RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = NewRateLimiter(cfg.RateLimit)
		// Names are unique on a fresh manager.
		_ = m.Register(limiter)
	}
	if cfg.Audit.Enabled {
		_ = m.Register(NewAudit(logger))
	}
	return m, limiter
}
