package config

import (
	"strings"
	"time"
)

// RateLimitConfig configures the Redis token bucket.  Each key gets Capacity
// tokens and regains RefillTokens every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and normalizes them so the
// bucket can always refill.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "diary:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	return cfg.normalize()
}

func (cfg RateLimitConfig) normalize() RateLimitConfig {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// keep idle buckets around long enough to refill at least a few tokens
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	cfg.KeyStrategy = strings.ToLower(strings.TrimSpace(cfg.KeyStrategy))
	if _, ok := anonymousStrategy[cfg.KeyStrategy]; !ok {
		cfg.KeyStrategy = "ip_user_route"
	}
	return cfg
}

// anonymousStrategy maps each key strategy to the one used before the caller
// is known: the user part is dropped, keeping the rest.
var anonymousStrategy = map[string]string{
	"ip":            "ip",
	"route":         "route",
	"ip_route":      "ip_route",
	"user":          "ip",
	"ip_user":       "ip",
	"user_route":    "ip_route",
	"ip_user_route": "ip_route",
}

// UsesIdentity reports whether keys include the signed-in user.
func (cfg RateLimitConfig) UsesIdentity() bool {
	return strings.Contains(cfg.KeyStrategy, "user")
}

// Anonymous is the limiter config for the global layer, which runs before
// JWT parsing and so cannot key on the user.
func (cfg RateLimitConfig) Anonymous() RateLimitConfig {
	if s, ok := anonymousStrategy[cfg.KeyStrategy]; ok {
		cfg.KeyStrategy = s
	} else {
		cfg.KeyStrategy = "ip_route"
	}
	return cfg
}

// Members is the limiter config for routes behind JWTAuth.  It keeps the
// configured strategy under its own prefix and is disabled when the strategy
// never looks at the user.
func (cfg RateLimitConfig) Members() RateLimitConfig {
	cfg.Prefix += ":member"
	if !cfg.UsesIdentity() {
		cfg.Enabled = false
	}
	return cfg
}
