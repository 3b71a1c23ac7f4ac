package scheduler

import (
	"time"
)

// Config controls the maintenance interval and per-job switches.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	EnabledJobs map[string]bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 24 * time.Hour,
		JobTimeout:  2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func (c Config) isJobEnabled(name string) bool {
	if c.EnabledJobs == nil {
		return true
	}
	enabled, ok := c.EnabledJobs[name]
	if !ok {
		return true
	}
	return enabled
}
