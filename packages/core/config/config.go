package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the verif configuration
type Config struct {
	DefaultEnvironment string                    `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Timeout            string                    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // duration, e.g. "30s"
	FollowRedirects    *bool                     `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int                       `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	Proxy              string                    `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers            map[string]string         `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Rate               float64                   `json:"rate,omitempty" yaml:"rate,omitempty"`       // Max requests per second, 0 = unlimited
	Bail               *bool                     `json:"bail,omitempty" yaml:"bail,omitempty"`
	NoColor            *bool                     `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Output             string                    `json:"output,omitempty" yaml:"output,omitempty"`   // console, json, junit, tap, html
	History            string                    `json:"history,omitempty" yaml:"history,omitempty"` // SQLite file recording runs
	MetricsFile        string                    `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty"`
	Notify             *NotifyConfig             `json:"notify,omitempty" yaml:"notify,omitempty"`
	Environments       map[string]map[string]any `json:"environments,omitempty" yaml:"environments,omitempty"`
}

// NotifyConfig configures chat notifications after a run
type NotifyConfig struct {
	On           string `json:"on,omitempty" yaml:"on,omitempty"` // always, failure, success, recovery
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	TeamsWebhook string `json:"teamsWebhook,omitempty" yaml:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetTimeout parses the timeout, defaulting to DefaultTimeout
func (c *Config) GetTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// Validate reports settings that cannot be used
func (c *Config) Validate() error {
	if _, err := c.GetTimeout(); err != nil {
		return err
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %v", c.Rate)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative, got %d", c.MaxRedirects)
	}
	switch strings.ToLower(c.Output) {
	case "", "console", "json", "junit", "tap", "html":
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	return nil
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".verif.yaml",
	".verif.yml",
	"verif.yaml",
	".verif.json",
	"verif.config.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout != "" {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.MetricsFile != "" {
		result.MetricsFile = other.MetricsFile
	}
	if other.Notify != nil {
		result.Notify = other.Notify
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]any, len(c.Environments)+len(other.Environments))
		for k, v := range c.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig writes the configuration as YAML, or JSON for a .json path
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
