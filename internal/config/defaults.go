package config

import (
	"github.com/creasty/defaults"
)

// DefaultConfig returns a Config with the default values from the struct tags.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Tags are static; a failure here is a programming error.
		panic("config: invalid default tags: " + err.Error())
	}
	return cfg
}
