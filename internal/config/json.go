package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// duration accepts "15m"-style strings or integer nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer: %w", err)
	}
	*d = duration(n)
	return nil
}

// fileConfig is the JSON file shape. Absent keys leave the current value alone.
type fileConfig struct {
	HTTPAddr           *string   `json:"http_addr"`
	HealthAddr         *string   `json:"health_addr"`
	DSN                *string   `json:"database_dsn"`
	TrustProxy         *bool     `json:"trust_proxy"`
	SecretKey          *string   `json:"secret_key"`
	AccessTTL          *duration `json:"access_ttl"`
	GoogleClientID     *string   `json:"google_client_id"`
	GoogleClientSecret *string   `json:"google_client_secret"`
	GoogleTokenURL     *string   `json:"google_token_url"`
	CalendarID         *string   `json:"calendar_id"`
	SyncTimeout        *duration `json:"sync_timeout"`
	LimiterWindow      *duration `json:"limiter_window"`
	LimiterMaxFails    *int      `json:"limiter_max_fails"`
	LimiterBlockFor    *duration `json:"limiter_block_for"`
	HealthInterval     *duration `json:"health_interval"`
	Dev                *bool     `json:"dev"`
}

func applyFile(c *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	set(&c.HTTPAddr, f.HTTPAddr)
	set(&c.HealthAddr, f.HealthAddr)
	set(&c.DSN, f.DSN)
	set(&c.TrustProxy, f.TrustProxy)
	set(&c.SecretKey, f.SecretKey)
	setDur(&c.AccessTTL, f.AccessTTL)
	set(&c.GoogleClientID, f.GoogleClientID)
	set(&c.GoogleClientSecret, f.GoogleClientSecret)
	set(&c.GoogleTokenURL, f.GoogleTokenURL)
	set(&c.CalendarID, f.CalendarID)
	setDur(&c.SyncTimeout, f.SyncTimeout)
	setDur(&c.LimiterWindow, f.LimiterWindow)
	set(&c.LimiterMaxFails, f.LimiterMaxFails)
	setDur(&c.LimiterBlockFor, f.LimiterBlockFor)
	setDur(&c.HealthInterval, f.HealthInterval)
	set(&c.Dev, f.Dev)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDur(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = time.Duration(*v)
	}
}
