// Package config loads pps settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, $XDG_CONFIG_HOME/pps/config.toml unless a path is given
//  3. a .env file in the working directory, loaded into the environment
//  4. PPS_* environment variables
//
// Command-line flags are applied on top by the caller.
//
// Example config.toml:
//
//	timeout = "5s"
//	concurrency = 16
//	on_enrich_error = "degrade"
//
//	[retry]
//	initial = "250ms"
//	max_elapsed = "1m"
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/pps/pkg/core"
	pkgerrors "github.com/matzehuels/pps/pkg/errors"
	"github.com/matzehuels/pps/pkg/httputil"
	"github.com/matzehuels/pps/pkg/integrations/pypi"
)

const appName = "pps"

// Duration is a time.Duration written as a Go duration string ("1m30s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Retry configures the statistics retry loop. Zero MaxElapsed and
// MaxAttempts mean unbounded.
type Retry struct {
	Initial     Duration `toml:"initial"`
	Multiplier  float64  `toml:"multiplier"`
	MaxInterval Duration `toml:"max_interval"`
	Jitter      float64  `toml:"jitter"`
	MaxElapsed  Duration `toml:"max_elapsed"`
	MaxAttempts int      `toml:"max_attempts"`
}

// Config holds every tunable setting.
type Config struct {
	SearchURL string   `toml:"search_url"`
	StatsURL  string   `toml:"stats_url"`
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"` // per request

	Pages  int    `toml:"pages"`
	SortBy string `toml:"sort_by"`
	Python string `toml:"python"`

	Retry         Retry   `toml:"retry"`
	RateLimit     float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst     int     `toml:"rate_burst"`
	Concurrency   int     `toml:"concurrency"`
	OnEnrichError string  `toml:"on_enrich_error"` // "fail-fast" or "degrade"

	BreakerThreshold int      `toml:"breaker_threshold"` // 0 disables
	BreakerCooldown  Duration `toml:"breaker_cooldown"`

	CacheEntries int      `toml:"cache_entries"`
	CacheTTL     Duration `toml:"cache_ttl"`
	DNSRefresh   Duration `toml:"dns_refresh"`
}

// Default returns the built-in settings.
func Default() *Config {
	rp := httputil.DefaultRetryPolicy()
	return &Config{
		SearchURL: pypi.DefaultSearchURL,
		StatsURL:  pypi.DefaultStatsURL,
		UserAgent: "pps/1.0",
		Timeout:   Duration(httputil.DefaultTimeout),
		Pages:     1,
		SortBy:    string(core.SortRelevance),
		Python:    "python3",
		Retry: Retry{
			Initial:     Duration(rp.InitialInterval),
			Multiplier:  rp.Multiplier,
			MaxInterval: Duration(rp.MaxInterval),
			Jitter:      rp.RandomizationFactor,
			MaxElapsed:  Duration(rp.MaxElapsed),
			MaxAttempts: rp.MaxAttempts,
		},
		RateLimit:        20,
		RateBurst:        10,
		Concurrency:      pypi.DefaultConcurrency,
		OnEnrichError:    pypi.FailFast.String(),
		BreakerThreshold: 8,
		BreakerCooldown:  Duration(5 * time.Second),
		CacheEntries:     4096,
		CacheTTL:         Duration(10 * time.Minute),
		DNSRefresh:       Duration(5 * time.Minute),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/pps/config.toml, falling back to
// ~/.config/pps/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load builds a Config from defaults, the TOML file at path, .env and the
// environment. An empty path uses [DefaultPath], which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !explicit && errors.Is(err, fs.ErrNotExist) {
				err = nil
			}
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "config file %s", path)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks URLs, sort key, failure policy and numeric ranges.
func (c *Config) Validate() error {
	for _, u := range []string{c.SearchURL, c.StatsURL} {
		if err := pkgerrors.ValidateURL(u); err != nil {
			return err
		}
	}
	if _, err := core.ParseSortKey(c.SortBy); err != nil {
		return err
	}
	if _, err := pypi.ParseFailurePolicy(c.OnEnrichError); err != nil {
		return err
	}
	switch {
	case c.Pages < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "pages must be at least 1, got %d", c.Pages)
	case c.Timeout <= 0:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "timeout must be positive")
	case c.Concurrency < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "concurrency must be at least 1, got %d", c.Concurrency)
	case c.RateLimit < 0:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "rate_limit cannot be negative")
	case c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "retry multiplier must be at least 1")
	case c.Retry.Jitter < 0 || c.Retry.Jitter > 1:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "retry jitter must be between 0 and 1")
	case c.Retry.MaxAttempts < 0:
		return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "retry max_attempts cannot be negative")
	}
	return nil
}

// RetryPolicy converts the retry settings.
func (c *Config) RetryPolicy() httputil.RetryPolicy {
	return httputil.RetryPolicy{
		InitialInterval:     c.Retry.Initial.Std(),
		Multiplier:          c.Retry.Multiplier,
		MaxInterval:         c.Retry.MaxInterval.Std(),
		RandomizationFactor: c.Retry.Jitter,
		MaxElapsed:          c.Retry.MaxElapsed.Std(),
		MaxAttempts:         c.Retry.MaxAttempts,
	}
}

// FailurePolicy returns the parsed enrichment failure policy.
func (c *Config) FailurePolicy() pypi.FailurePolicy {
	p, _ := pypi.ParseFailurePolicy(c.OnEnrichError)
	return p
}
