package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// SourceConfig describes a single calendar source. Exactly one of URL or
// Path is expected.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is an HTTP(S) subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Key returns ID, falling back to Name, URL and Path in that order.
func (s SourceConfig) Key() string {
	for _, v := range []string{s.ID, s.Name, s.URL, s.Path} {
		if v != "" {
			return v
		}
	}
	return ""
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ProdIDConfig is the vendor/product pair written into PRODID.
type ProdIDConfig struct {
	Vendor  string `yaml:"vendor" json:"vendor"`
	Product string `yaml:"product" json:"product"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days to expand.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// BackfillDays is the number of past days to include.
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// MaxOccurrences caps the expansion of a single recurring event.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// ProdID is used for every calendar this program writes.
	ProdID ProdIDConfig `yaml:"prodid" json:"prodid"`

	// TimezoneFile optionally points at an .ics file whose VTIMEZONE
	// definitions are available to every source.
	TimezoneFile string `yaml:"timezone_file,omitempty" json:"timezone_file,omitempty"`

	// CacheDir holds the HTTP body cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Sources is the list of calendar sources.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "UTC"
	defaultRefreshCron    = "*/15 * * * *"
	defaultHorizonDays    = 7
	defaultBackfillDays   = 1
	defaultMaxOccurrences = 5000
	defaultCacheDir       = "./var/ics-cache"
	defaultVendor         = "icalkit"
	defaultProduct        = "icalkit"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		RefreshCron:    defaultRefreshCron,
		HorizonDays:    defaultHorizonDays,
		BackfillDays:   defaultBackfillDays,
		MaxOccurrences: defaultMaxOccurrences,
		ProdID:         ProdIDConfig{Vendor: defaultVendor, Product: defaultProduct},
		CacheDir:       defaultCacheDir,
		Sources:        []SourceConfig{},
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.ProdID.Vendor == "" {
		c.ProdID.Vendor = defaultVendor
	}
	if c.ProdID.Product == "" {
		c.ProdID.Product = defaultProduct
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if (s.URL == "") == (s.Path == "") {
			return fmt.Errorf("config: source %d (%s): exactly one of url or path is required", i, s.Key())
		}
		k := s.Key()
		if seen[k] {
			return fmt.Errorf("config: duplicate source %q", k)
		}
		seen[k] = true
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".icalkit-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
