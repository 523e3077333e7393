package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("MPESA_BASE_URL", "")
	t.Setenv("AIRTEL_COUNTRY", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "")
	t.Setenv("PENDING_MAX_AGE_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.MpesaBaseURL != "https://sandbox.safaricom.co.ke" {
		t.Fatalf("MpesaBaseURL mismatch: got %q", cfg.MpesaBaseURL)
	}
	if cfg.AirtelCountry != "KE" {
		t.Fatalf("AirtelCountry mismatch: got %q", cfg.AirtelCountry)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("RateLimitPerMin mismatch: got %d", cfg.RateLimitPerMin)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("SweepInterval mismatch: got %v", cfg.SweepInterval)
	}
	if cfg.PendingMaxAge != time.Hour {
		t.Fatalf("PendingMaxAge mismatch: got %v", cfg.PendingMaxAge)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig should fail without DATABASE_URL")
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "1919")
	t.Setenv("FLW_BASE_URL", "https://flw.test/v3")
	t.Setenv("HTTP_READ_TIMEOUT_SECONDS", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "1919")
	}
	if cfg.FlutterwaveBaseURL != "https://flw.test/v3" {
		t.Fatalf("FlutterwaveBaseURL mismatch: got %q", cfg.FlutterwaveBaseURL)
	}
	if cfg.HTTPReadTimeout != 5*time.Second {
		t.Fatalf("HTTPReadTimeout mismatch: got %v", cfg.HTTPReadTimeout)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Fatalf("RateLimitPerMin mismatch: got %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfigIgnoresMalformedInt(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "plenty")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Fatalf("RateLimitPerMin mismatch: got %d want fallback 30", cfg.RateLimitPerMin)
	}
}
