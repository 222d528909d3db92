package config

import "time"

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 10
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            DefaultTimeout.String(),
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       DefaultMaxRedirects,
		Output:             "console",
	}
}
