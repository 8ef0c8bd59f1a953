// Package config handles configuration loading and management for hitwire.
//
// It provides functionality for:
//   - Loading configuration from .hitwire.json or .hitwire.yaml files
//   - Default configuration values
//   - Merging file values with command-line overrides
package config
