package config

import "time"

// Config holds the complete engine configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Limits    LimitsConfig    `yaml:"limits"`
	Logging   LogConfig       `yaml:"logging"`
	Backend   BackendConfig   `yaml:"backend"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	WorkQueue WorkQueueConfig `yaml:"workQueue"`
}

// EngineConfig controls the operation lifecycle engine.
type EngineConfig struct {
	// CancelWaitTimeout bounds how long a cancel request waits for the
	// target operation to reach a final outcome.
	CancelWaitTimeout  time.Duration `yaml:"cancelWaitTimeout" default:"5s"`
	CancelPollInterval time.Duration `yaml:"cancelPollInterval" default:"50ms"`
	// NotifyAbandonedOperations sends a CANCELED response to the client for
	// operations cancelled without an explicit notification request.
	NotifyAbandonedOperations bool `yaml:"notifyAbandonedOperations"`
}

// LimitsConfig holds the per-connection search limits. Zero means unlimited.
type LimitsConfig struct {
	SizeLimit int           `yaml:"sizeLimit" default:"1000"`
	TimeLimit time.Duration `yaml:"timeLimit" default:"60s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

// BackendConfig holds the local backend configuration.
type BackendConfig struct {
	BaseDNs  []string `yaml:"baseDNs"`
	InMemory bool     `yaml:"inMemory" default:"true"`
	DataDir  string   `yaml:"dataDir" default:"/var/lib/obacore"`
}

// PluginsConfig holds built-in plugin configuration.
type PluginsConfig struct {
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Audit     AuditConfig     `yaml:"audit"`
}

// RateLimitConfig configures the pre-parse rate limiter.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" default:"100"`
	Burst             int     `yaml:"burst" default:"200"`
}

// AuditConfig configures the post-response audit plugin.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// WorkQueueConfig sizes the operation worker pool.
type WorkQueueConfig struct {
	Workers   int `yaml:"workers" default:"16"`
	QueueSize int `yaml:"queueSize" default:"1024"`
}
