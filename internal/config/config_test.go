package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.RateLimitRPM != 30 {
		t.Errorf("RateLimitRPM = %d, want 30", cfg.RateLimitRPM)
	}
	if cfg.RateLimitBurst != 5 {
		t.Errorf("RateLimitBurst = %d, want 5", cfg.RateLimitBurst)
	}
	if cfg.MaxConcurrentDownloads != 5 {
		t.Errorf("MaxConcurrentDownloads = %d, want 5", cfg.MaxConcurrentDownloads)
	}
	if cfg.MaxFileSize != 104857600 {
		t.Errorf("MaxFileSize = %d, want 100MB", cfg.MaxFileSize)
	}
	if cfg.BatchTimeout != 300*time.Second {
		t.Errorf("BatchTimeout = %v, want 300s", cfg.BatchTimeout)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("CacheTTL = %v, want 300s", cfg.CacheTTL)
	}
	if cfg.MaxStoryItems != 10 {
		t.Errorf("MaxStoryItems = %d, want 10", cfg.MaxStoryItems)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "60")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("BATCH_TIMEOUT", "30")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.RateLimitRPM != 60 {
		t.Errorf("RateLimitRPM = %d, want 60", cfg.RateLimitRPM)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, want 1MB", cfg.MaxFileSize)
	}
	if cfg.BatchTimeout != 30*time.Second {
		t.Errorf("BatchTimeout = %v, want 30s", cfg.BatchTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimitRPM != 30 {
		t.Errorf("RateLimitRPM = %d, want default 30", cfg.RateLimitRPM)
	}
}

func TestEnvModes(t *testing.T) {
	t.Setenv("ENV", "production")
	cfg, _ := Load()
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("expected production mode")
	}

	t.Setenv("ENV", "development")
	cfg, _ = Load()
	if !cfg.IsDevelopment() || cfg.IsProduction() {
		t.Error("expected development mode")
	}
}
