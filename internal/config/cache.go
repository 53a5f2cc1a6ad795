package config

import "time"

// CacheConfig defines settings for cached list queries and the lock
// protocol that guards their recomputation.  When Enabled is false or no
// Redis client is configured, list queries hit the database directly.
//
// TTL is the lifetime of a cached list.  LockTTL bounds how long a crashed
// fill owner can keep others waiting.  Jitter is the upper bound of the
// random delay a caller sleeps after a miss before racing for the lock.
// RetryInterval and MaxWait drive the poll loop of callers that lost the
// race; once MaxWait elapses they compute the value themselves.
type CacheConfig struct {
	Enabled       bool
	Prefix        string
	TTL           time.Duration
	LockTTL       time.Duration
	Jitter        time.Duration
	RetryInterval time.Duration
	MaxWait       time.Duration
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set, and out-of-range values are
// clamped so the poll loop always terminates.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:       envBool("CACHE_ENABLED", true),
		Prefix:        envStr("CACHE_PREFIX", "cache"),
		TTL:           envDur("CACHE_TTL", 30*time.Second),
		LockTTL:       envDur("CACHE_LOCK_TTL", 5*time.Second),
		Jitter:        envDur("CACHE_JITTER", 50*time.Millisecond),
		RetryInterval: envDur("CACHE_RETRY_INTERVAL", 50*time.Millisecond),
		MaxWait:       envDur("CACHE_MAX_WAIT", 3*time.Second),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	if cfg.MaxWait < cfg.RetryInterval {
		cfg.MaxWait = cfg.RetryInterval
	}
	return cfg
}
