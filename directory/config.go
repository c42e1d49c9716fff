package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Protocol selects the coherence protocol a Controller enforces.
type Protocol string

const (
	// MSI is the baseline protocol: no Exclusive state.
	MSI Protocol = "MSI"
	// MESI adds Exclusive: an uncontended load is upgraded so a later
	// store from the same cache needs no further directory round trip.
	MESI Protocol = "MESI"
)

// Config holds a directory controller's configuration, following the
// shape of timing/latency.TimingConfig: JSON-tagged fields, a
// Default*Config constructor, JSON load/save, and a Validate method.
type Config struct {
	// CacheLineSize is the block granularity in bytes.
	CacheLineSize int `json:"cache_line_size"`

	// CoherenceProtocol selects MSI or MESI (case-insensitive on load).
	CoherenceProtocol Protocol `json:"coherence_protocol"`

	// AddrRangeStart/AddrRangeEnd bound the addresses this controller
	// owns. AddrRangeEnd of 0 means "no upper bound".
	AddrRangeStart uint64 `json:"addr_range_start"`
	AddrRangeEnd   uint64 `json:"addr_range_end"`

	// InterleaveSizeKiB/InterleaveStepKiB stripe this controller's
	// ownership within AddrRangeStart/AddrRangeEnd, in KiB.
	InterleaveSizeKiB uint64 `json:"interleave_size"`
	InterleaveStepKiB uint64 `json:"interleave_step"`

	// EntryCacheSize bounds the directory-entry cache; 0 means every
	// entry is always spilled to memory immediately.
	EntryCacheSize int `json:"entry_cache_size"`

	// MSHRNumEntries bounds total in-flight MSHR entries; -1 means
	// effectively unbounded.
	MSHRNumEntries int `json:"mshr_num_entries"`

	// AccessLatencyCycles/MSHRLatencyCycles are added to the current
	// timestamp when scheduling outbound events (spec.md §4.4).
	AccessLatencyCycles uint64 `json:"access_latency_cycles"`
	MSHRLatencyCycles   uint64 `json:"mshr_latency_cycles"`

	// DirectMemLink selects a point-to-point link to memory instead of
	// routing memory traffic through the network.
	DirectMemLink bool `json:"direct_mem_link"`

	// NetMemoryName names the memory component on the network; required
	// when DirectMemLink is false.
	NetMemoryName string `json:"net_memory_name"`

	// ClockRate is an informational rate string (e.g. "1GHz"); the
	// actual cycle count is driven externally via Controller.Tick.
	ClockRate string `json:"clock"`

	// DebugLevel gates the trace written to the SetDebugOutput writer: a
	// message of level n is written only when n <= DebugLevel.
	// DebugStatus does not consult it.
	DebugLevel int `json:"debug_level"`
}

// DefaultConfig returns a Config with the same defaults the original
// component parameters declare.
func DefaultConfig() *Config {
	return &Config{
		CacheLineSize:     64,
		CoherenceProtocol: MSI,
		AddrRangeStart:    0,
		AddrRangeEnd:      0,
		EntryCacheSize:    32768,
		MSHRNumEntries:    -1,
		DirectMemLink:     true,
		ClockRate:         "1GHz",
	}
}

// LoadConfig loads a Config from a JSON file, starting from
// DefaultConfig so any field the file omits keeps its default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse directory config: %w", err)
	}
	cfg.normalizeProtocol()

	return cfg, nil
}

// SaveConfig writes cfg to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize directory config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write directory config file: %w", err)
	}
	return nil
}

// normalizeProtocol case-normalizes CoherenceProtocol the way the
// original does ("mesi"/"MESI" -> "MESI", "msi"/"MSI" -> "MSI").
func (c *Config) normalizeProtocol() {
	switch strings.ToUpper(string(c.CoherenceProtocol)) {
	case string(MESI):
		c.CoherenceProtocol = MESI
	case string(MSI):
		c.CoherenceProtocol = MSI
	}
}

// Validate checks the configuration for fatal misconfiguration, the way
// the original's constructor does before registering any links.
func (c *Config) Validate() error {
	c.normalizeProtocol()
	if c.CoherenceProtocol != MSI && c.CoherenceProtocol != MESI {
		return fmt.Errorf("invalid coherence_protocol %q: must be MSI or MESI", c.CoherenceProtocol)
	}
	if c.CacheLineSize <= 0 {
		return fmt.Errorf("cache_line_size must be > 0")
	}
	if c.MSHRNumEntries == 0 || c.MSHRNumEntries < -1 {
		return fmt.Errorf("mshr_num_entries must be >= 1, or -1 to indicate an unbounded MSHR")
	}
	if c.EntryCacheSize < 0 {
		return fmt.Errorf("entry_cache_size must be >= 0")
	}
	if !c.DirectMemLink && c.NetMemoryName == "" {
		return fmt.Errorf("net_memory_name is required when direct_mem_link is false")
	}
	if c.InterleaveSizeKiB > 0 && c.InterleaveStepKiB < c.InterleaveSizeKiB {
		return fmt.Errorf("interleave_step must be >= interleave_size")
	}
	return nil
}
