package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	GeoIPDBPath string

	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaPasskey        string
	MpesaCallbackURL    string

	FlutterwaveBaseURL   string
	FlutterwaveSecretKey string
	FlutterwaveHash      string
	FlutterwaveRedirect  string

	AirtelBaseURL      string
	AirtelClientID     string
	AirtelClientSecret string
	AirtelCountry      string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	SweepInterval time.Duration
	PendingMaxAge time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		MpesaBaseURL:        getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),

		FlutterwaveBaseURL:   getEnv("FLW_BASE_URL", "https://api.flutterwave.com/v3"),
		FlutterwaveSecretKey: os.Getenv("FLW_SECRET_KEY"),
		FlutterwaveHash:      os.Getenv("FLW_WEBHOOK_HASH"),
		FlutterwaveRedirect:  os.Getenv("FLW_REDIRECT_URL"),

		AirtelBaseURL:      getEnv("AIRTEL_BASE_URL", "https://openapi.airtel.africa"),
		AirtelClientID:     os.Getenv("AIRTEL_CLIENT_ID"),
		AirtelClientSecret: os.Getenv("AIRTEL_CLIENT_SECRET"),
		AirtelCountry:      getEnv("AIRTEL_COUNTRY", "KE"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		SweepInterval: time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)),
		PendingMaxAge: time.Second * time.Duration(getEnvInt("PENDING_MAX_AGE_SECONDS", 3600)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
