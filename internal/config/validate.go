package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a configuration.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "config: " + strings.Join(msgs, "; ")
}

// Validate checks cfg and returns nil or a ValidationErrors.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	errs = append(errs, validateEngineConfig(&cfg.Engine)...)
	errs = append(errs, validateLimitsConfig(&cfg.Limits)...)
	errs = append(errs, validateLogConfig(&cfg.Logging)...)
	errs = append(errs, validateBackendConfig(&cfg.Backend)...)
	errs = append(errs, validatePluginsConfig(&cfg.Plugins)...)
	errs = append(errs, validateWorkQueueConfig(&cfg.WorkQueue)...)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateEngineConfig(config *EngineConfig) []ValidationError {
	var errs []ValidationError

	if config.CancelWaitTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.cancelWaitTimeout",
			Message: "must be positive",
		})
	}
	if config.CancelPollInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.cancelPollInterval",
			Message: "must be positive",
		})
	} else if config.CancelPollInterval > config.CancelWaitTimeout {
		errs = append(errs, ValidationError{
			Field:   "engine.cancelPollInterval",
			Message: "must not exceed cancelWaitTimeout",
		})
	}

	return errs
}

func validateLimitsConfig(config *LimitsConfig) []ValidationError {
	var errs []ValidationError

	if config.SizeLimit < 0 {
		errs = append(errs, ValidationError{Field: "limits.sizeLimit", Message: "must be non-negative"})
	}
	if config.TimeLimit < 0 {
		errs = append(errs, ValidationError{Field: "limits.timeLimit", Message: "must be non-negative"})
	}

	return errs
}

func validateLogConfig(config *LogConfig) []ValidationError {
	var errs []ValidationError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}

func validateBackendConfig(config *BackendConfig) []ValidationError {
	var errs []ValidationError

	for i, base := range config.BaseDNs {
		d, err := dn.Parse(base)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("backend.baseDNs[%d]", i),
				Message: err.Error(),
			})
		} else if d.IsRoot() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("backend.baseDNs[%d]", i),
				Message: "the root DSE cannot be a base DN",
			})
		}
	}

	if !config.InMemory && config.DataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.dataDir",
			Message: "is required when inMemory is false",
		})
	}

	return errs
}

func validatePluginsConfig(config *PluginsConfig) []ValidationError {
	var errs []ValidationError

	if rl := config.RateLimit; rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			errs = append(errs, ValidationError{
				Field:   "plugins.rateLimit.requestsPerSecond",
				Message: "must be positive",
			})
		}
		if rl.Burst < 1 {
			errs = append(errs, ValidationError{
				Field:   "plugins.rateLimit.burst",
				Message: "must be at least 1",
			})
		}
	}

	return errs
}

func validateWorkQueueConfig(config *WorkQueueConfig) []ValidationError {
	var errs []ValidationError

	if config.Workers < 1 {
		errs = append(errs, ValidationError{Field: "workQueue.workers", Message: "must be at least 1"})
	}
	if config.QueueSize < 0 {
		errs = append(errs, ValidationError{Field: "workQueue.queueSize", Message: "must be non-negative"})
	}

	return errs
}
