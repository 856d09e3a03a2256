package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without zoneinfo

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"thunderbasics/internal/daterange"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. THUNDERBASICS_TIMEZONE.
const EnvPrefix = "THUNDERBASICS"

var (
	ErrEmptyPath = errors.New("config path is empty")
	ErrNilConfig = errors.New("config is nil")
)

// RangeConfig describes a named range query.
type RangeConfig struct {
	// Name identifies the range in logs, the API and ICS summaries.
	Name string `yaml:"name" json:"name"`
	// Unit is a daterange unit name: week, month, year, week_of_month, ...
	Unit string `yaml:"unit" json:"unit"`
	// Options is a comma separated daterange option list, e.g.
	// "direction_future,include_original_day".
	Options string `yaml:"options,omitempty" json:"options,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone ranges are computed in (e.g. "Europe/London").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart selects the weekday numbering. Supported values:
	//   - "monday" (default)
	//   - "sunday": adds week_starts_on_sunday to every range
	WeekStart string `yaml:"week_start" json:"week_start"`

	// FirstWeekday is the 1-based index of the first day of the week within
	// the numbering selected by WeekStart.
	FirstWeekday int `yaml:"first_weekday" json:"first_weekday"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a standard 5-field cron spec controlling when watched
	// ranges are recomputed.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Ranges is the list of named range queries served and watched.
	Ranges []RangeConfig `yaml:"ranges" json:"ranges"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "UTC"
	defaultWeekStart   = "monday"
	defaultLogLevel    = "info"
	defaultRefreshCron = "0 0 * * *"
)

func defaultRanges() []RangeConfig {
	return []RangeConfig{
		{Name: "week_to_date", Unit: "week"},
		{Name: "rest_of_week", Unit: "week", Options: "direction_future"},
		{Name: "month_to_date", Unit: "month", Options: "include_original_day"},
		{Name: "rest_of_month", Unit: "month", Options: "direction_future"},
		{Name: "year_to_date", Unit: "year"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    defaultWeekStart,
		FirstWeekday: 1,
		LogLevel:     defaultLogLevel,
		RefreshCron:  defaultRefreshCron,
		Ranges:       defaultRanges(),
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday.
		c.WeekStart = defaultWeekStart
	}
	if c.FirstWeekday == 0 {
		c.FirstWeekday = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Ranges == nil {
		c.Ranges = defaultRanges()
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		result = multierror.Append(result, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.FirstWeekday < 1 || c.FirstWeekday > 7 {
		result = multierror.Append(result, fmt.Errorf("first_weekday %d: must be within 1..7", c.FirstWeekday))
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		result = multierror.Append(result, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}

	seen := make(map[string]bool, len(c.Ranges))
	for i, rc := range c.Ranges {
		if rc.Name == "" {
			result = multierror.Append(result, fmt.Errorf("ranges[%d]: name is empty", i))
		} else if seen[rc.Name] {
			result = multierror.Append(result, fmt.Errorf("ranges[%d]: duplicate name %q", i, rc.Name))
		}
		seen[rc.Name] = true

		if _, err := daterange.ParseUnit(rc.Unit); err != nil {
			result = multierror.Append(result, fmt.Errorf("ranges[%d]: %w", i, err))
		}
		if _, err := daterange.ParseOptions(rc.Options); err != nil {
			result = multierror.Append(result, fmt.Errorf("ranges[%d]: %w", i, err))
		}
	}

	return result.ErrorOrNil()
}

// Calendar builds the resolver calendar described by the config.
func (c *Config) Calendar() (daterange.Calendar, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return daterange.Calendar{}, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return daterange.Calendar{FirstWeekday: c.FirstWeekday, Location: loc}, nil
}

// BaseOptions returns the options implied by WeekStart.
func (c *Config) BaseOptions() daterange.Options {
	if c.WeekStart == "sunday" {
		return daterange.WeekStartsOnSunday
	}
	return 0
}

// Queries converts the configured ranges into resolver queries.
func (c *Config) Queries() ([]model.Query, error) {
	out := make([]model.Query, 0, len(c.Ranges))
	for _, rc := range c.Ranges {
		unit, err := daterange.ParseUnit(rc.Unit)
		if err != nil {
			return nil, fmt.Errorf("config: range %q: %w", rc.Name, err)
		}
		opts, err := daterange.ParseOptions(rc.Options)
		if err != nil {
			return nil, fmt.Errorf("config: range %q: %w", rc.Name, err)
		}
		out = append(out, model.Query{Name: rc.Name, Unit: unit, Options: opts | c.BaseOptions()})
	}
	return out, nil
}

// envOverrides lists the settings that may be overridden from the environment.
type envOverrides struct {
	Listen       string
	Timezone     string
	WeekStart    string `split_words:"true"`
	FirstWeekday int    `split_words:"true"`
	LogLevel     string `split_words:"true"`
	Refresh      string
}

// ApplyEnv overrides fields from THUNDERBASICS_* environment variables.
func (c *Config) ApplyEnv() error {
	var ov envOverrides
	if err := envconfig.Process(EnvPrefix, &ov); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if ov.Listen != "" {
		c.Listen = ov.Listen
	}
	if ov.Timezone != "" {
		c.Timezone = ov.Timezone
	}
	if ov.WeekStart != "" {
		c.WeekStart = ov.WeekStart
	}
	if ov.FirstWeekday != 0 {
		c.FirstWeekday = ov.FirstWeekday
	}
	if ov.LogLevel != "" {
		c.LogLevel = ov.LogLevel
	}
	if ov.Refresh != "" {
		c.RefreshCron = ov.Refresh
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
//   - normalize defaults
//   - Environment overrides are applied last and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	cfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
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
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
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

	tmp, err := os.CreateTemp(dir, ".thunderbasics-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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
