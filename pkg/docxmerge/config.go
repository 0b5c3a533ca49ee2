package docxmerge

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config contains all configuration options for the docxmerge engine
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `yaml:"logLevel"`
	// StrictMode makes unrecognised {...} tokens a render error instead of
	// passing them through as literal text
	StrictMode bool `yaml:"strictMode"`
	// MaxBlockDepth limits the render nesting depth; each loop or conditional
	// block, each table and each table row adds one level
	MaxBlockDepth int `yaml:"maxBlockDepth"`
	// DefaultImageSize is the fallback edge length in pixels for images whose
	// intrinsic dimensions cannot be determined and that carry no explicit size
	DefaultImageSize int `yaml:"defaultImageSize"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		StrictMode:       false,
		MaxBlockDepth:    100,
		DefaultImageSize: 120,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("DOCXMERGE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	if val := os.Getenv("DOCXMERGE_STRICT_MODE"); val != "" {
		config.StrictMode = parseBool(val)
	}

	if val := os.Getenv("DOCXMERGE_MAX_BLOCK_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxBlockDepth = depth
		}
	}

	if val := os.Getenv("DOCXMERGE_DEFAULT_IMAGE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.DefaultImageSize = size
		}
	}

	return config
}

// ConfigFromFile loads a configuration from a YAML file, applying defaults
// to unset fields
func ConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxBlockDepth <= 0 {
		return errors.New("max block depth must be positive")
	}
	if c.DefaultImageSize <= 0 {
		return errors.New("default image size must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}
	return nil
}

func parseBool(val string) bool {
	switch val {
	case "1", "t", "T", "true", "TRUE", "True", "yes", "YES", "Yes", "on", "ON", "On":
		return true
	default:
		return false
	}
}

// GetGlobalConfig returns the global configuration, initializing it from the
// environment on first use
func GetGlobalConfig() *Config {
	configOnce.Do(func() {
		globalConfig = ConfigFromEnvironment()
	})
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()
	return globalConfig
}

// SetGlobalConfig replaces the global configuration
func SetGlobalConfig(config *Config) {
	configOnce.Do(func() {})
	globalConfigMutex.Lock()
	defer globalConfigMutex.Unlock()
	globalConfig = config
}
