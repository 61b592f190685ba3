package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paywatch/pmtproc/internal/classify"
	"github.com/paywatch/pmtproc/internal/reaper"
)

// DefaultUserAgent is the fixed desktop identity presented to the target.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/125.0.0.0 Safari/537.36"

// Config holds all monitor configuration. Everything that influences a run
// (output directory, identity, patterns, intervals) is explicit here rather
// than constant, so tests can substitute alternates.
type Config struct {
	// Target campaign: a bare slug or a full URL.
	Target string `json:"target" yaml:"target"`

	// Directory receiving the HAR file and the history database.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Browser identity.
	UserAgent      string            `json:"user_agent" yaml:"user_agent"`
	ViewportWidth  int               `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int               `json:"viewport_height" yaml:"viewport_height"`
	ExtraHeaders   map[string]string `json:"extra_headers" yaml:"extra_headers"`

	// Lifecycle intervals.
	NavTimeout      time.Duration `json:"nav_timeout" yaml:"nav_timeout"`
	PollInterval    time.Duration `json:"poll_interval" yaml:"poll_interval"`
	DOMScanInterval time.Duration `json:"dom_scan_interval" yaml:"dom_scan_interval"`

	// Payment patterns (regex fragments). Empty means the built-in set.
	Patterns []string `json:"patterns" yaml:"patterns"`

	// Reaper command-line patterns. Empty means the built-in set.
	ReaperPatterns []string `json:"reaper_patterns" yaml:"reaper_patterns"`

	// Force the naive last-two-labels domain resolver.
	NaiveDomains bool `json:"naive_domains" yaml:"naive_domains"`

	// Run ledger.
	History     bool   `json:"history" yaml:"history"`
	HistoryPath string `json:"history_path" yaml:"history_path"`

	// Headless is for tests only; operator runs are headed.
	Headless bool `json:"headless" yaml:"headless"`

	Verbose bool `json:"verbose" yaml:"verbose"`
	Debug   bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      ".",
		UserAgent:      DefaultUserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		ExtraHeaders: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		},
		NavTimeout:      60 * time.Second,
		PollInterval:    200 * time.Millisecond,
		DOMScanInterval: 5 * time.Second,
		Patterns:        nil, // built-ins
		ReaperPatterns:  reaper.DefaultPatterns(),
		History:         true,
	}
}

// Validate checks the configuration for obvious problems.
func (c *Config) Validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("nav_timeout must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if _, err := classify.NewMatcher(c.Patterns); err != nil {
		return fmt.Errorf("invalid payment pattern: %w", err)
	}
	return nil
}

// Slug returns the normalized campaign slug for the configured target.
func (c *Config) Slug() string {
	return classify.ExtractSlug(c.Target)
}

// TargetURL returns the fully-qualified campaign URL.
func (c *Config) TargetURL() string {
	return "https://www.givesendgo.com/" + c.Slug()
}

// HARPath returns the deterministic HAR output path for the slug.
func (c *Config) HARPath() string {
	return filepath.Join(c.OutputDir, fmt.Sprintf("pmtproc_%s_monitor.har", c.Slug()))
}

// HistoryFile returns the run-ledger path, defaulting into the output dir.
func (c *Config) HistoryFile() string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return filepath.Join(c.OutputDir, "pmtproc_history.db")
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		// Try YAML first, then JSON.
		if err := yaml.Unmarshal(data, config); err != nil {
			if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	return config, nil
}
