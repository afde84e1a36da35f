package tracker

import "time"

// Config controls watch-session poll cadence and overall deadline.
type Config struct {
	PollInterval time.Duration
	Deadline     time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 3 * time.Second,
		Deadline:     2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.Deadline <= 0 {
		c.Deadline = defaults.Deadline
	}
	return c
}
