package config

import (
	"strconv"
	"strings"

	"github.com/matzehuels/pps/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PPS_"

// ApplyEnv overrides settings from PPS_* variables found by lookup, for
// example PPS_TIMEOUT=5s or PPS_RETRY_MAX_ATTEMPTS=4.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SEARCH_URL":      &c.SearchURL,
		"STATS_URL":       &c.StatsURL,
		"USER_AGENT":      &c.UserAgent,
		"SORT_BY":         &c.SortBy,
		"PYTHON":          &c.Python,
		"ON_ENRICH_ERROR": &c.OnEnrichError,
	}
	ints := map[string]*int{
		"PAGES":              &c.Pages,
		"RATE_BURST":         &c.RateBurst,
		"CONCURRENCY":        &c.Concurrency,
		"BREAKER_THRESHOLD":  &c.BreakerThreshold,
		"CACHE_ENTRIES":      &c.CacheEntries,
		"RETRY_MAX_ATTEMPTS": &c.Retry.MaxAttempts,
	}
	floats := map[string]*float64{
		"RATE_LIMIT":       &c.RateLimit,
		"RETRY_MULTIPLIER": &c.Retry.Multiplier,
		"RETRY_JITTER":     &c.Retry.Jitter,
	}
	durations := map[string]*Duration{
		"TIMEOUT":            &c.Timeout,
		"BREAKER_COOLDOWN":   &c.BreakerCooldown,
		"CACHE_TTL":          &c.CacheTTL,
		"DNS_REFRESH":        &c.DNSRefresh,
		"RETRY_INITIAL":      &c.Retry.Initial,
		"RETRY_MAX_INTERVAL": &c.Retry.MaxInterval,
		"RETRY_MAX_ELAPSED":  &c.Retry.MaxElapsed,
	}

	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	bad := func(name, v string, err error) error {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s%s=%q", EnvPrefix, name, v)
	}

	for name, p := range strs {
		if v, ok := get(name); ok {
			*p = v
		}
	}
	for name, p := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return bad(name, v, err)
			}
			*p = n
		}
	}
	for name, p := range floats {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return bad(name, v, err)
			}
			*p = f
		}
	}
	for name, p := range durations {
		if v, ok := get(name); ok {
			if err := p.UnmarshalText([]byte(v)); err != nil {
				return bad(name, v, err)
			}
		}
	}
	return nil
}
