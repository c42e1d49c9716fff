package memsim

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds a backing memory model's configuration, following the
// same JSON-tagged, Default/Load/Save/Validate shape as
// timing/latency.TimingConfig and directory.Config.
type Config struct {
	// SizeBytes is the total addressable local memory behind one
	// directory controller's owned range.
	SizeBytes uint64 `json:"size_bytes"`

	// ClockRate is informational only; actual cycle advancement is
	// driven externally.
	ClockRate string `json:"clock"`
}

// DefaultConfig returns a Config sized generously enough for test
// harnesses exercising a handful of cache lines.
func DefaultConfig() *Config {
	return &Config{
		SizeBytes: 16 * 1024 * 1024,
		ClockRate: "1GHz",
	}
}

// LoadConfig loads a Config from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse memory config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize memory config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write memory config file: %w", err)
	}
	return nil
}

// Validate checks cfg for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.SizeBytes == 0 {
		return fmt.Errorf("size_bytes must be > 0")
	}
	return nil
}
