package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagConfig          = "config"
	FlagHTTPAddr        = "http-addr"
	FlagHealthAddr      = "health-addr"
	FlagDSN             = "dsn"
	FlagTrustProxy      = "trust-proxy"
	FlagSecretKey       = "secret-key"
	FlagAccessTTL       = "access-ttl"
	FlagGoogleClientID  = "google-client-id"
	FlagGoogleSecret    = "google-client-secret"
	FlagGoogleTokenURL  = "google-token-url"
	FlagCalendarID      = "calendar-id"
	FlagSyncTimeout     = "sync-timeout"
	FlagLimiterWindow   = "limiter-window"
	FlagLimiterMaxFails = "limiter-max-fails"
	FlagLimiterBlockFor = "limiter-block-for"
	FlagHealthInterval  = "health-interval"
	FlagDev             = "dev"
)

// RegisterFlags defines the server flags on fs with built-in defaults.
// Only flags the user actually sets override file and environment values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "path to a JSON config file")
	fs.String(FlagHTTPAddr, d.HTTPAddr, "HTTP listen address")
	fs.String(FlagHealthAddr, d.HealthAddr, "gRPC health listen address (empty disables)")
	fs.String(FlagDSN, d.DSN, "PostgreSQL DSN (env DATABASE_URL)")
	fs.Bool(FlagTrustProxy, d.TrustProxy, "take client address from X-Forwarded-For/X-Real-IP")
	fs.String(FlagSecretKey, "", "HS256 signing secret (env SECRET_KEY)")
	fs.Duration(FlagAccessTTL, d.AccessTTL, "session token lifetime")
	fs.String(FlagGoogleClientID, "", "Google OAuth client id (env GOOGLE_CLIENT_ID)")
	fs.String(FlagGoogleSecret, "", "Google OAuth client secret (env GOOGLE_CLIENT_SECRET)")
	fs.String(FlagGoogleTokenURL, "", "override Google OAuth token endpoint")
	fs.String(FlagCalendarID, d.CalendarID, "target calendar id")
	fs.Duration(FlagSyncTimeout, d.SyncTimeout, "upper bound for one calendar reconciliation")
	fs.Duration(FlagLimiterWindow, d.LimiterWindow, "login failure counting window")
	fs.Int(FlagLimiterMaxFails, d.LimiterMaxFails, "login failures allowed per window")
	fs.Duration(FlagLimiterBlockFor, d.LimiterBlockFor, "lockout after too many login failures")
	fs.Duration(FlagHealthInterval, d.HealthInterval, "database ping interval for health status")
	fs.Bool(FlagDev, d.Dev, "development logging and gRPC reflection")
}

func applyFlags(c *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagHTTPAddr:
			c.HTTPAddr, err = fs.GetString(f.Name)
		case FlagHealthAddr:
			c.HealthAddr, err = fs.GetString(f.Name)
		case FlagDSN:
			c.DSN, err = fs.GetString(f.Name)
		case FlagTrustProxy:
			c.TrustProxy, err = fs.GetBool(f.Name)
		case FlagSecretKey:
			c.SecretKey, err = fs.GetString(f.Name)
		case FlagAccessTTL:
			c.AccessTTL, err = fs.GetDuration(f.Name)
		case FlagGoogleClientID:
			c.GoogleClientID, err = fs.GetString(f.Name)
		case FlagGoogleSecret:
			c.GoogleClientSecret, err = fs.GetString(f.Name)
		case FlagGoogleTokenURL:
			c.GoogleTokenURL, err = fs.GetString(f.Name)
		case FlagCalendarID:
			c.CalendarID, err = fs.GetString(f.Name)
		case FlagSyncTimeout:
			c.SyncTimeout, err = fs.GetDuration(f.Name)
		case FlagLimiterWindow:
			c.LimiterWindow, err = fs.GetDuration(f.Name)
		case FlagLimiterMaxFails:
			c.LimiterMaxFails, err = fs.GetInt(f.Name)
		case FlagLimiterBlockFor:
			c.LimiterBlockFor, err = fs.GetDuration(f.Name)
		case FlagHealthInterval:
			c.HealthInterval, err = fs.GetDuration(f.Name)
		case FlagDev:
			c.Dev, err = fs.GetBool(f.Name)
		}
		if err != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return err
}

// Load builds the effective Config: defaults, then the JSON file named by
// --config, then the environment, then explicitly set flags. fs may be nil.
func Load(fs *pflag.FlagSet, lookup LookupFunc) (Config, error) {
	c := Default()

	if fs != nil {
		if path, _ := fs.GetString(FlagConfig); path != "" {
			if err := applyFile(&c, path); err != nil {
				return Config{}, err
			}
		}
	}
	if err := applyEnv(&c, lookup); err != nil {
		return Config{}, err
	}
	if fs != nil {
		if err := applyFlags(&c, fs); err != nil {
			return Config{}, err
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
