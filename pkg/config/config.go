// Package config provides the configuration system for the sheets connector.
//
// Two layers live here:
//   - Options: the flat key-value scopes (server, table, user) a host hands
//     to a connector on every lifecycle call
//   - SheetsConfig: the YAML document an embedding host (the sheetscan CLI)
//     loads to build those scopes plus its own timeouts, retry and
//     observability settings
//
// Example usage:
//
//	cfg, err := config.LoadSheetsConfig("people.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Table[config.OptionSpreadsheetID])
package config

import (
	"fmt"
	"time"
)

// SheetsConfig describes one foreign table backed by a spreadsheet, together
// with the settings of the host that scans it.
type SheetsConfig struct {
	// Name identifies the foreign table
	Name string `yaml:"name" json:"name"`

	// Server holds server-level options (base_url)
	Server Options `yaml:"server" json:"server"`
	// Table holds table-level options (spread_sheet_id, sheet_id, sheet_name)
	Table Options `yaml:"table" json:"table"`
	// Credentials holds user-level options (sa_key or sa_key_file)
	Credentials Options `yaml:"credentials" json:"credentials"`

	// Columns is the projection requested from the connector, in ordinal order
	Columns []ColumnConfig `yaml:"columns" json:"columns"`

	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Reliability   ReliabilityConfig   `yaml:"reliability" json:"reliability"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ColumnConfig declares one target column. Its ordinal is its position in
// SheetsConfig.Columns, starting at 1.
type ColumnConfig struct {
	Name string `yaml:"name" json:"name"`
	// Type is a host type name such as "bigint" or "text"
	Type string `yaml:"type" json:"type"`
}

// TimeoutConfig contains all timeout-related settings.
type TimeoutConfig struct {
	// Request bounds a single HTTP attempt
	Request time.Duration `yaml:"request" json:"request"`
	// Connection bounds dialing and the TLS handshake
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Scan bounds a whole begin_scan call, retries included (0 = unbounded)
	Scan time.Duration `yaml:"scan" json:"scan"`
}

// ReliabilityConfig controls the fetch retry policy.
type ReliabilityConfig struct {
	// RetryAttempts is the number of retries after the first attempt
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial backoff interval
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier grows the interval after each retry
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps a single backoff interval
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing" json:"enable_tracing"`
}

// NewSheetsConfig returns a configuration with defaults filled in.
func NewSheetsConfig(name string) *SheetsConfig {
	return &SheetsConfig{
		Name:        name,
		Server:      Options{},
		Table:       Options{},
		Credentials: Options{},
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			EnableMetrics: true,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *SheetsConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, ok := c.Table[OptionSpreadsheetID]; !ok {
		return fmt.Errorf("table.%s is required", OptionSpreadsheetID)
	}
	if c.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if c.Reliability.RetryMultiplier != 0 && c.Reliability.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be at least 1")
	}
	if c.Timeouts.Request < 0 || c.Timeouts.Connection < 0 || c.Timeouts.Scan < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	for i, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("columns[%d]: name is required", i)
		}
		if col.Type == "" {
			return fmt.Errorf("columns[%d]: type is required", i)
		}
	}
	return nil
}
