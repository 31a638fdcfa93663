package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// applyEnv overlays environment variables on c. The unprefixed names are the
// ones the web deployment already uses.
func applyEnv(c *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", key, err)
		}
	}
	dur := func(dst *time.Duration, key string) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			fail(key, err)
			return
		}
		*dst = d
	}
	boolean := func(dst *bool, key string) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(key, err)
			return
		}
		*dst = b
	}

	str(&c.HTTPAddr, "SYNCDO_HTTP_ADDR")
	str(&c.HealthAddr, "SYNCDO_HEALTH_ADDR")
	str(&c.DSN, "SYNCDO_DATABASE_URL", "DATABASE_URL")
	str(&c.SecretKey, "SYNCDO_SECRET_KEY", "SECRET_KEY")
	str(&c.GoogleClientID, "SYNCDO_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	str(&c.GoogleClientSecret, "SYNCDO_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	str(&c.GoogleTokenURL, "SYNCDO_GOOGLE_TOKEN_URL")
	str(&c.CalendarID, "SYNCDO_CALENDAR_ID")
	dur(&c.AccessTTL, "SYNCDO_ACCESS_TTL")
	dur(&c.SyncTimeout, "SYNCDO_SYNC_TIMEOUT")
	dur(&c.LimiterWindow, "SYNCDO_LIMITER_WINDOW")
	dur(&c.LimiterBlockFor, "SYNCDO_LIMITER_BLOCK")
	dur(&c.HealthInterval, "SYNCDO_HEALTH_INTERVAL")
	boolean(&c.TrustProxy, "SYNCDO_TRUST_PROXY")
	boolean(&c.Dev, "SYNCDO_DEV")

	if v, ok := lookup("SYNCDO_LIMITER_MAX_FAILS"); ok && v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			fail("SYNCDO_LIMITER_MAX_FAILS", err)
		} else {
			c.LimiterMaxFails = n
		}
	}
	return firstErr
}
