package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the hitwire configuration
type Config struct {
	Timeout     int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"` // milliseconds, 0 disables
	ValidateSSL *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty" toml:"validateSSL,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`       // Sent with every CLI request
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables,omitempty"` // {{name}} interpolation
	History     string            `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"`       // sqlite path or postgres:// URL, empty disables
	NoColor     *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty" toml:"noColor,omitempty"`
	Verbose     *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty" toml:"verbose,omitempty"`
	Bench       *BenchConfig      `json:"bench,omitempty" yaml:"bench,omitempty" toml:"bench,omitempty"`
}

// BenchConfig holds defaults for the bench command
type BenchConfig struct {
	Requests    int     `json:"requests,omitempty" yaml:"requests,omitempty" toml:"requests,omitempty"`
	Concurrency int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
	Rate        float64 `json:"rate,omitempty" yaml:"rate,omitempty" toml:"rate,omitempty"` // requests per second, 0 is unlimited
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30000, // 30 seconds
		ValidateSSL: BoolPtr(true),
		NoColor:     BoolPtr(false),
		Verbose:     BoolPtr(false),
		Bench: &BenchConfig{
			Requests:    100,
			Concurrency: 10,
		},
	}
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

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// TimeoutDuration returns Timeout as a duration
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hitwire.json",
	"hitwire.json",
	".hitwire.yaml",
	".hitwire.yml",
	"hitwire.yaml",
	"hitwire.yml",
	".hitwire.toml",
	"hitwire.toml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or ""
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand ${VAR} from the process environment
	data = []byte(os.ExpandEnv(string(data)))

	fileConfig := &Config{}
	switch formatOf(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, fileConfig)
	case formatTOML:
		err = toml.Unmarshal(data, fileConfig)
	default:
		err = json.Unmarshal(data, fileConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := fileConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return DefaultConfig().Merge(fileConfig), nil
}

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

// formatOf picks the file format from the extension, defaulting to JSON
func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.Bench != nil {
		if c.Bench.Requests < 0 {
			return fmt.Errorf("bench.requests cannot be negative")
		}
		if c.Bench.Concurrency < 0 {
			return fmt.Errorf("bench.concurrency cannot be negative")
		}
		if c.Bench.Rate < 0 {
			return fmt.Errorf("bench.rate cannot be negative")
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.History != "" {
		result.History = other.History
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}

	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.Variables = mergeMaps(c.Variables, other.Variables)

	if other.Bench != nil {
		bench := BenchConfig{}
		if c.Bench != nil {
			bench = *c.Bench
		}
		if other.Bench.Requests > 0 {
			bench.Requests = other.Bench.Requests
		}
		if other.Bench.Concurrency > 0 {
			bench.Concurrency = other.Bench.Concurrency
		}
		if other.Bench.Rate > 0 {
			bench.Rate = other.Bench.Rate
		}
		result.Bench = &bench
	}

	return &result
}

func mergeMaps(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// SaveConfig saves the configuration to a file, as YAML, TOML or JSON by
// extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch formatOf(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	case formatTOML:
		data, err = toml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
