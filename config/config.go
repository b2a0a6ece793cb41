// Package config holds catalog configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every knob the catalog core consumes. Invalid values
// fail fast in Validate before any component is constructed.
type Config struct {
	CachePath          string
	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheMaxSizeMB     int
	CacheMemoryEntries int

	SchedulerEnabled bool
	MaxWorkers       int
	BatchSize        int

	MinRelevance     float64
	NegativeKeywords []string
	MaxDrillDown     int

	OutputFile   string
	OutputFormat string // csv, json, or dual
	MetricsAddr  string
	Verbose      bool
}

// DefaultConfig returns conservative defaults for marketplace runs.
func DefaultConfig() *Config {
	return &Config{
		CachePath:          "cache/catalog.db",
		CacheEnabled:       true,
		CacheTTL:           24 * time.Hour,
		CacheMaxSizeMB:     100,
		CacheMemoryEntries: 256,
		SchedulerEnabled:   true,
		MaxWorkers:         3,
		BatchSize:          5,
		MinRelevance:       0.3,
		NegativeKeywords:   nil,
		MaxDrillDown:       20,
		OutputFile:         "output/offers.csv",
		OutputFormat:       "csv",
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.CacheEnabled {
		if c.CachePath == "" {
			return fmt.Errorf("cache path cannot be empty")
		}
		if c.CacheTTL <= 0 {
			return fmt.Errorf("cache ttl must be positive")
		}
		if c.CacheMaxSizeMB < 0 {
			return fmt.Errorf("cache max size cannot be negative")
		}
		if c.CacheMemoryEntries <= 0 {
			return fmt.Errorf("cache memory entries must be positive")
		}
	}
	if c.SchedulerEnabled {
		if c.MaxWorkers <= 0 {
			return fmt.Errorf("max workers must be positive")
		}
		if c.BatchSize <= 0 {
			return fmt.Errorf("batch size must be positive")
		}
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min relevance must be between 0 and 1")
	}
	if c.MaxDrillDown < 0 {
		return fmt.Errorf("max drill down cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

// CacheMaxSizeBytes converts the configured megabyte ceiling to bytes.
func (c *Config) CacheMaxSizeBytes() int64 {
	return int64(c.CacheMaxSizeMB) * 1024 * 1024
}

// EnvInt reads an integer environment variable. The second return
// reports whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
