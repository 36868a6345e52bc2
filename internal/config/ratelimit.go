package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limit policy names.  Each protected route is bound to one policy.
const (
	PolicyLogin         = "login"
	PolicyRegister      = "register"
	PolicyPasswordReset = "password_reset"
	PolicyOTP           = "otp"
	PolicyAnalysis      = "analysis"
	PolicyListingSubmit = "listing_submit"
)

// RatePolicy allows Limit requests per client IP within each fixed Window.
type RatePolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	Prefix   string
	Debug    bool
	Policies map[string]RatePolicy
}

var defaultPolicies = []RatePolicy{
	{Name: PolicyLogin, Limit: 5, Window: 60 * time.Second},
	{Name: PolicyRegister, Limit: 3, Window: 10 * time.Minute},
	{Name: PolicyPasswordReset, Limit: 3, Window: 15 * time.Minute},
	{Name: PolicyOTP, Limit: 5, Window: 10 * time.Minute},
	{Name: PolicyAnalysis, Limit: 10, Window: time.Hour},
	{Name: PolicyListingSubmit, Limit: 20, Window: 24 * time.Hour},
}

// LoadRateLimitConfig builds the policy table.  A policy can be overridden
// with RATE_LIMIT_<NAME>="<limit>/<window>", e.g. RATE_LIMIT_LOGIN="10/1m".
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:  envBool("RATE_LIMIT_ENABLED", true),
		Prefix:   envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:    envBool("RATE_LIMIT_DEBUG", false),
		Policies: make(map[string]RatePolicy, len(defaultPolicies)),
	}
	for _, p := range defaultPolicies {
		if raw := os.Getenv("RATE_LIMIT_" + strings.ToUpper(p.Name)); raw != "" {
			if o, err := ParseRatePolicy(p.Name, raw); err == nil {
				p = o
			}
		}
		cfg.Policies[p.Name] = p
	}
	return cfg
}

// Policy returns the named policy, falling back to a permissive default so
// a typo in route wiring never blocks all traffic.
func (c RateLimitConfig) Policy(name string) RatePolicy {
	if p, ok := c.Policies[name]; ok {
		return p
	}
	return RatePolicy{Name: name, Limit: 60, Window: time.Minute}
}

// ParseRatePolicy parses "<limit>/<window>".
func ParseRatePolicy(name, raw string) (RatePolicy, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "/", 2)
	if len(parts) != 2 {
		return RatePolicy{}, fmt.Errorf("rate policy %s: expected <limit>/<window>, got %q", name, raw)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit < 1 {
		return RatePolicy{}, fmt.Errorf("rate policy %s: invalid limit %q", name, parts[0])
	}
	window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return RatePolicy{}, fmt.Errorf("rate policy %s: invalid window %q", name, parts[1])
	}
	return RatePolicy{Name: name, Limit: limit, Window: window}, nil
}
