package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string

	AppName string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	OTPTTL             time.Duration

	ResendAPIKey string
	EmailFrom    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
}

// GoogleEnabled reports whether the Google OAuth credential group is set.
// Federated login routes are not registered when it is absent.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURI != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:    "8080",
		AppName: "ECOM",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if name := os.Getenv("APP_NAME"); name != "" {
		cfg.AppName = name
	}

	cfg.AccessTokenSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	if cfg.AccessTokenSecret == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET environment variable is required")
	}
	cfg.RefreshTokenSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	if cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("REFRESH_TOKEN_SECRET environment variable is required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	var err error
	cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_EXPIRES_IN", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_EXPIRES_IN", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.OTPTTL, err = durationEnv("OTP_EXPIRES_IN", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	if cfg.EmailFrom == "" {
		cfg.EmailFrom = "ECOM <no-reply@localhost>"
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURI = os.Getenv("GOOGLE_REDIRECT_URI")

	return cfg, nil
}

// durationEnv parses a duration env var ("15m", "168h"), using def when unset.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, raw)
	}
	return d, nil
}
