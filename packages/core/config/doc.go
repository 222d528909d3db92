// Package config handles configuration loading and management for verif.
//
// It provides functionality for:
//   - Loading configuration from .verif.yaml or .verif.json files
//   - Default configuration values
//   - Per-environment variables used when resolving suite files
package config
