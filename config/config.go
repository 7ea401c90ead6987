// Package config loads server configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fieldops/timeclock/attendance"
)

// Config holds application configuration.
type Config struct {
	Port         string
	DBPath       string
	IsProduction bool

	JWTSecret string
	JWTIssuer string

	// Engine defaults for tenants without stored settings.
	DefaultTimezone        string
	LocationTolerance      time.Duration
	MinimumHoursForFullPay float64
	LunchAutoDeduct        time.Duration

	StoreTimeout time.Duration
	AuditTimeout time.Duration
	AuditBuffer  int

	GeocoderURL     string // empty disables reverse geocoding
	GeocoderTimeout time.Duration

	PunchRateLimit string // ulule limiter format, e.g. "10-M"
	CORSOrigins    []string
}

const insecureJWTSecret = "change-me-timeclock-dev-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "./data/timeclock.db")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("JWT_SECRET", insecureJWTSecret)
	v.SetDefault("JWT_ISSUER", "timeclock")
	v.SetDefault("DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("LOCATION_TOLERANCE", attendance.DefaultLocationTolerance.String())
	v.SetDefault("MIN_HOURS_FULL_PAY", attendance.DefaultMinimumHoursForFullPay)
	v.SetDefault("LUNCH_AUTO_DEDUCT", "0s")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("AUDIT_TIMEOUT", "5s")
	v.SetDefault("AUDIT_BUFFER", 256)
	v.SetDefault("GEOCODER_URL", "")
	v.SetDefault("GEOCODER_TIMEOUT", "1s")
	v.SetDefault("PUNCH_RATE_LIMIT", "10-M")
	v.SetDefault("CORS_ORIGINS", "*")
}

// Load reads configuration from the environment, after loading .env if one
// exists in the working directory.
func Load() (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                   v.GetString("PORT"),
		DBPath:                 v.GetString("DB_PATH"),
		IsProduction:           v.GetBool("IS_PRODUCTION"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTIssuer:              v.GetString("JWT_ISSUER"),
		DefaultTimezone:        v.GetString("DEFAULT_TIMEZONE"),
		MinimumHoursForFullPay: v.GetFloat64("MIN_HOURS_FULL_PAY"),
		AuditBuffer:            v.GetInt("AUDIT_BUFFER"),
		GeocoderURL:            v.GetString("GEOCODER_URL"),
		PunchRateLimit:         v.GetString("PUNCH_RATE_LIMIT"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LOCATION_TOLERANCE", &cfg.LocationTolerance},
		{"LUNCH_AUTO_DEDUCT", &cfg.LunchAutoDeduct},
		{"STORE_TIMEOUT", &cfg.StoreTimeout},
		{"AUDIT_TIMEOUT", &cfg.AuditTimeout},
		{"GEOCODER_TIMEOUT", &cfg.GeocoderTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if cfg.IsProduction && (cfg.JWTSecret == "" || cfg.JWTSecret == insecureJWTSecret) {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}
	if cfg.AuditBuffer <= 0 {
		return nil, fmt.Errorf("AUDIT_BUFFER must be positive, got %d", cfg.AuditBuffer)
	}
	if err := cfg.TenantDefaults().Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TenantDefaults are the engine settings applied to tenants without their own.
func (c *Config) TenantDefaults() attendance.TenantSettings {
	return attendance.TenantSettings{
		Timezone:               c.DefaultTimezone,
		LocationTolerance:      c.LocationTolerance,
		MinimumHoursForFullPay: c.MinimumHoursForFullPay,
		Lunch:                  &attendance.LunchPolicy{AutoDeduct: c.LunchAutoDeduct},
	}
}
