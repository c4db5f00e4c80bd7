package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("UPSTREAM_URL", "http://localhost:8000/opportunities")
	t.Setenv("TRUSTED_PROXIES", "")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamURL != "http://localhost:8000/opportunities" {
		t.Errorf("UpstreamURL = %q, want %q", cfg.UpstreamURL, "http://localhost:8000/opportunities")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 10*time.Second)
	}
	if cfg.UpstreamMaxSize != 5242880 {
		t.Errorf("UpstreamMaxSize = %d, want %d", cfg.UpstreamMaxSize, 5242880)
	}
	if cfg.UpstreamSSRFGuard {
		t.Error("UpstreamSSRFGuard = true, want false")
	}
	if cfg.RefreshSchedule != "@every 5m" {
		t.Errorf("RefreshSchedule = %q, want %q", cfg.RefreshSchedule, "@every 5m")
	}
	if !reflect.DeepEqual(cfg.OpportunityTypes, []string{"Internship", "Conference"}) {
		t.Errorf("OpportunityTypes = %v", cfg.OpportunityTypes)
	}
	if cfg.PageTitle != "CampusClimb Opportunities" {
		t.Errorf("PageTitle = %q", cfg.PageTitle)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.CORSAllowedOrigin != "*" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "*")
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want empty", cfg.TrustedProxies)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("UPSTREAM_MAX_SIZE", "1024")
	t.Setenv("UPSTREAM_SSRF_GUARD", "true")
	t.Setenv("REFRESH_SCHEDULE", "*/10 * * * *")
	t.Setenv("OPPORTUNITY_TYPES", " Internship , Conference,,Scholarship ")
	t.Setenv("PAGE_TITLE", "WVSU Opportunities")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("CORS_ALLOWED_ORIGIN", "https://campus.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 3*time.Second)
	}
	if cfg.UpstreamMaxSize != 1024 {
		t.Errorf("UpstreamMaxSize = %d, want 1024", cfg.UpstreamMaxSize)
	}
	if !cfg.UpstreamSSRFGuard {
		t.Error("UpstreamSSRFGuard = false, want true")
	}
	if cfg.RefreshSchedule != "*/10 * * * *" {
		t.Errorf("RefreshSchedule = %q", cfg.RefreshSchedule)
	}
	if !reflect.DeepEqual(cfg.OpportunityTypes, []string{"Internship", "Conference", "Scholarship"}) {
		t.Errorf("OpportunityTypes = %v", cfg.OpportunityTypes)
	}
	if cfg.PageTitle != "WVSU Opportunities" {
		t.Errorf("PageTitle = %q", cfg.PageTitle)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want 60", cfg.RateLimitGeneral)
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if cfg.CORSAllowedOrigin != "https://campus.example.com" {
		t.Errorf("CORSAllowedOrigin = %q", cfg.CORSAllowedOrigin)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("UPSTREAM_MAX_SIZE", "big")
	t.Setenv("UPSTREAM_SSRF_GUARD", "maybe")
	t.Setenv("RATE_LIMIT_GENERAL", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v", cfg.UpstreamTimeout)
	}
	if cfg.UpstreamMaxSize != 5242880 {
		t.Errorf("UpstreamMaxSize = %d", cfg.UpstreamMaxSize)
	}
	if cfg.UpstreamSSRFGuard {
		t.Error("UpstreamSSRFGuard should fall back to false")
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d", cfg.RateLimitGeneral)
	}
}

func TestLoad_RefreshDisabled(t *testing.T) {
	for _, v := range []string{"", "off", "OFF"} {
		t.Run(v, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv("REFRESH_SCHEDULE", v)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cfg.RefreshSchedule != "" {
				t.Errorf("RefreshSchedule = %q, want empty", cfg.RefreshSchedule)
			}
		})
	}
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8 , 192.0.2.10,2001:db8::/32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}
	if !reflect.DeepEqual(cfg.TrustedProxies, want) {
		t.Errorf("TrustedProxies = %v, want %v", cfg.TrustedProxies, want)
	}
}

func TestLoad_InvalidTrustedProxies_ReturnsError(t *testing.T) {
	for _, v := range []string{"not-an-ip", "10.0.0.0/40", "10.0.0.1, bogus"} {
		t.Run(v, func(t *testing.T) {
			setRequiredEnvVars(t)
			t.Setenv("TRUSTED_PROXIES", v)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for TRUSTED_PROXIES=%q, got nil", v)
			}
		})
	}
}

func TestLoad_MissingUpstreamURL_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing UPSTREAM_URL, got nil")
	}
}

// TestLoad_EnvFile は.envファイルから値を読み込み、既存の環境変数を優先することを検証する。
func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "UPSTREAM_URL=http://sheets.example.com/opportunities\nSERVER_PORT=9090\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	t.Setenv("ENV_FILE", path)
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("SERVER_PORT", "7070")
	// godotenvは空でも設定済みの変数を上書きしないため、テスト対象の変数を未設定に戻す
	os.Unsetenv("UPSTREAM_URL")
	t.Cleanup(func() { os.Unsetenv("UPSTREAM_URL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.UpstreamURL != "http://sheets.example.com/opportunities" {
		t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070 (existing env wins)", cfg.ServerPort)
	}
}
