// © 2026 Myles M. Cook. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads and validates the sources.yaml configuration
// that drives the fetch pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MylesMCook/bloomberg-daily/internal/atomicio"
)

// SourceType identifies how a source produces an EPUB.
type SourceType string

const (
	TypeCalibreRecipe SourceType = "calibre_recipe"
	TypeFeed          SourceType = "feed"
	TypeGutenberg     SourceType = "gutenberg"
)

// ScheduleMode controls when a source runs.
type ScheduleMode string

const (
	ModeScheduled ScheduleMode = "scheduled" // runs on cron schedule
	ModeOnDemand  ScheduleMode = "on_demand" // manual trigger only
)

// RateLimit is the rate limiting configuration for respectful scraping.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheHours        int     `yaml:"cache_hours"`
}

// DeviceProfile is device-specific output tuning applied during
// post-processing.
type DeviceProfile struct {
	CSSTheme        string  `yaml:"css_theme"`
	SkipPages       []int   `yaml:"skip_pages"`
	FontSizeAdjust  float64 `yaml:"font_size_adjust"`
	StripImages     bool    `yaml:"strip_images"`
	GrayscaleImages *bool   `yaml:"grayscale_images"`
}

// Source configures a single news source.
type Source struct {
	Name    string       `yaml:"name"`
	Type    SourceType   `yaml:"type"`
	Enabled *bool        `yaml:"enabled"`
	Mode    ScheduleMode `yaml:"mode"`
	// Schedule is a five-field cron expression, required for scheduled
	// sources.
	Schedule string `yaml:"schedule,omitempty"`

	// Calibre recipe sources.
	Recipe   string   `yaml:"recipe,omitempty"`
	Sections []string `yaml:"sections,omitempty"`

	// Feed sources: section name to feed URL.
	Feeds map[string]string `yaml:"feeds,omitempty"`

	// Gutenberg sources.
	SearchQuery string `yaml:"search_query,omitempty"`

	RetentionDays int        `yaml:"retention_days"`
	RateLimit     *RateLimit `yaml:"rate_limit,omitempty"`

	DeviceProfiles map[string]DeviceProfile `yaml:"device_profiles,omitempty"`

	AuthorOverride    string `yaml:"author_override,omitempty"`
	PublisherOverride string `yaml:"publisher_override,omitempty"`
}

// IsEnabled reports whether the source should be considered at all.
// Sources are enabled unless explicitly disabled.
func (s *Source) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Config is the root of sources.yaml.
type Config struct {
	Version string            `yaml:"version"`
	BaseURL string            `yaml:"base_url"`
	Sources map[string]Source `yaml:"sources"`

	DefaultRetentionDays int       `yaml:"default_retention_days"`
	DefaultRateLimit     RateLimit `yaml:"default_rate_limit"`
}

// Default returns the configuration used when sources.yaml is absent or
// empty.
func Default() *Config {
	return &Config{
		Version:              "1.0",
		BaseURL:              "https://mylesmcook.github.io/bloomberg-daily/",
		Sources:              map[string]Source{},
		DefaultRetentionDays: 7,
		DefaultRateLimit:     RateLimit{RequestsPerSecond: 1, CacheHours: 24},
	}
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Version == "" {
		c.Version = def.Version
	}
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.Sources == nil {
		c.Sources = map[string]Source{}
	}
	if c.DefaultRetentionDays == 0 {
		c.DefaultRetentionDays = def.DefaultRetentionDays
	}
	if c.DefaultRateLimit == (RateLimit{}) {
		c.DefaultRateLimit = def.DefaultRateLimit
	}
	for id, s := range c.Sources {
		if s.Mode == "" {
			s.Mode = ModeScheduled
		}
		if s.RetentionDays == 0 {
			s.RetentionDays = c.DefaultRetentionDays
		}
		if s.RateLimit == nil {
			rl := c.DefaultRateLimit
			s.RateLimit = &rl
		}
		for name, p := range s.DeviceProfiles {
			if p.CSSTheme == "" {
				p.CSSTheme = "default"
			}
			if p.FontSizeAdjust == 0 {
				p.FontSizeAdjust = 1
			}
			s.DeviceProfiles[name] = p
		}
		c.Sources[id] = s
	}
}

// Validate checks the configuration for consistency. It is called by
// Load, and directly on configs received over the wire.
func (c *Config) Validate() error {
	var errs []error

	checkRate := func(what string, rl RateLimit) {
		if rl.RequestsPerSecond < 0.1 || rl.RequestsPerSecond > 10 {
			errs = append(errs, fmt.Errorf("%s: requests_per_second must be within 0.1..10, got %g", what, rl.RequestsPerSecond))
		}
		if rl.CacheHours < 1 || rl.CacheHours > 168 {
			errs = append(errs, fmt.Errorf("%s: cache_hours must be within 1..168, got %d", what, rl.CacheHours))
		}
	}

	if c.DefaultRetentionDays < 1 || c.DefaultRetentionDays > 365 {
		errs = append(errs, fmt.Errorf("default_retention_days must be within 1..365, got %d", c.DefaultRetentionDays))
	}
	checkRate("default_rate_limit", c.DefaultRateLimit)

	for id, s := range c.Sources {
		bad := func(format string, args ...any) {
			errs = append(errs, fmt.Errorf("source %q: "+format, append([]any{id}, args...)...))
		}

		if s.Name == "" || len(s.Name) > 100 {
			bad("name must be 1..100 characters")
		}
		switch s.Type {
		case TypeCalibreRecipe:
			if s.Recipe == "" {
				bad("calibre_recipe type needs a recipe")
			}
		case TypeFeed:
			if len(s.Feeds) == 0 {
				bad("feed type needs at least one feed")
			}
		case TypeGutenberg:
			if s.SearchQuery == "" {
				bad("gutenberg type needs a search_query")
			}
		default:
			bad("unknown type %q", s.Type)
		}
		switch s.Mode {
		case ModeScheduled:
			if s.Schedule == "" {
				bad("scheduled source needs a cron schedule")
			}
		case ModeOnDemand:
		default:
			bad("unknown mode %q", s.Mode)
		}
		if s.Schedule != "" {
			if fields := strings.Fields(s.Schedule); len(fields) != 5 {
				bad("invalid cron expression %q", s.Schedule)
			}
		}
		if s.RetentionDays < 1 || s.RetentionDays > 365 {
			bad("retention_days must be within 1..365, got %d", s.RetentionDays)
		}
		if s.RateLimit != nil {
			checkRate(fmt.Sprintf("source %q rate_limit", id), *s.RateLimit)
		}
		for name, p := range s.DeviceProfiles {
			if p.FontSizeAdjust < 0.5 || p.FontSizeAdjust > 2 {
				bad("device profile %q: font_size_adjust must be within 0.5..2, got %g", name, p.FontSizeAdjust)
			}
		}
	}

	return errors.Join(errs...)
}

// Parse parses and validates a sources.yaml document.
func Parse(b []byte) (*Config, error) {
	c := new(Config)
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Load reads sources.yaml from path. A missing or empty file yields the
// default configuration.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return Default(), nil
	}
	return Parse(b)
}

// Save validates and atomically writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return atomicio.WriteFile(path, b, 0o644)
}

// EnabledSources returns IDs of enabled sources, optionally filtered by
// mode. Pass an empty mode to get all enabled sources.
func (c *Config) EnabledSources(mode ScheduleMode) []string {
	var ids []string
	for id, s := range c.Sources {
		if !s.IsEnabled() {
			continue
		}
		if mode != "" && s.Mode != mode {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
