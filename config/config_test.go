package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParseTrustedProxyCIDRs(t *testing.T) {
	cidrs, err := parseTrustedProxyCIDRs("203.0.113.0/24, 10.0.0.1, 2001:db8::/32")
	if err != nil {
		t.Fatalf("expected parse success, got error: %v", err)
	}
	if len(cidrs) != 3 {
		t.Fatalf("expected 3 cidr entries, got %d", len(cidrs))
	}
	if got := cidrs[1].String(); got != "10.0.0.1/32" {
		t.Fatalf("expected single IPv4 to normalize to /32, got %q", got)
	}
}

func TestParseTrustedProxyCIDRsRejectsInvalidEntry(t *testing.T) {
	if _, err := parseTrustedProxyCIDRs("not-a-cidr"); err == nil {
		t.Fatalf("expected parse failure for invalid entry")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RateLimitCapacity != 10 {
		t.Fatalf("expected rate limit capacity default 10, got %d", cfg.RateLimitCapacity)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Fatalf("expected rate limit window default 60s, got %s", cfg.RateLimitWindow)
	}
	if cfg.MaxRequestBodyBytes != 1_000_000 {
		t.Fatalf("expected body cap default 1000000, got %d", cfg.MaxRequestBodyBytes)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Fatalf("expected request timeout default 60s, got %s", cfg.RequestTimeout)
	}
	if cfg.AdmissionCapacity != 1024 {
		t.Fatalf("expected admission capacity default 1024, got %d", cfg.AdmissionCapacity)
	}
	if cfg.AdminAccessMode != AdminAccessModeHybrid {
		t.Fatalf("expected admin access mode default to hybrid, got %q", cfg.AdminAccessMode)
	}
	if cfg.ServiceHostSuffix != "amazonaws.com" {
		t.Fatalf("expected service suffix default amazonaws.com, got %q", cfg.ServiceHostSuffix)
	}
}

func TestLoadRequiresMasterKeyWithoutStaticCredentials(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "")
	t.Setenv(CredentialsEnvVar, "")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing master key to fail config load")
	}
}

func TestLoadAllowsStaticCredentialsWithoutMasterKey(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "")
	t.Setenv(CredentialsEnvVar, `{"AKIDEXAMPLE":"secret"}`)

	if _, err := Load(); err != nil {
		t.Fatalf("load config: %v", err)
	}
}

func TestLoadParsesRateLimitOverrides(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_RATE_LIMIT", "25")
	t.Setenv("GATEWAY_RATE_LIMIT_WINDOW_SECONDS", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RateLimitCapacity != 25 {
		t.Fatalf("expected rate limit capacity 25, got %d", cfg.RateLimitCapacity)
	}
	if cfg.RateLimitWindow != 2*time.Minute {
		t.Fatalf("expected rate limit window 120s, got %s", cfg.RateLimitWindow)
	}
}

func TestLoadAllowsDisablingRateLimit(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_RATE_LIMIT", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RateLimitCapacity != 0 {
		t.Fatalf("expected rate limit capacity 0, got %d", cfg.RateLimitCapacity)
	}
}

func TestLoadParsesMaxRequestBodyBytes(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_MAX_REQUEST_BODY_BYTES", "2097152")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxRequestBodyBytes != 2097152 {
		t.Fatalf("expected max request body bytes to be 2097152, got %d", cfg.MaxRequestBodyBytes)
	}
}

func TestLoadRejectsInvalidAdminAccessMode(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_ADMIN_ACCESS_MODE", "invalid-mode")

	if _, err := Load(); err == nil {
		t.Fatal("expected invalid admin access mode to fail config load")
	}
}

func TestLoadRequiresTokenForTokenMode(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_ADMIN_ACCESS_MODE", "token")
	t.Setenv("GATEWAY_ADMIN_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected token mode without token to fail config load")
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_LOG_LEVEL", "loud")

	if _, err := Load(); err == nil {
		t.Fatal("expected invalid log level to fail config load")
	}
}

func TestLoadDefaultsDataDirToUserHome(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/tmp/sigv4-test-home")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	expected := filepath.Join("/tmp/sigv4-test-home", ".local", "share", "sigv4-gateway")
	if cfg.DataDir != expected {
		t.Fatalf("expected data dir %q, got %q", expected, cfg.DataDir)
	}
}

func TestLoadPrefersXDGDataHome(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/tmp/sigv4-xdg")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	expected := filepath.Join("/tmp/sigv4-xdg", "sigv4-gateway")
	if cfg.DataDir != expected {
		t.Fatalf("expected data dir %q, got %q", expected, cfg.DataDir)
	}
}

func TestLoadParsesShutdownTimeoutSeconds(t *testing.T) {
	t.Setenv("GATEWAY_MASTER_KEY", "test-master-key")
	t.Setenv("GATEWAY_SHUTDOWN_TIMEOUT_SECONDS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ShutdownTimeout != 25*time.Second {
		t.Fatalf("expected shutdown timeout 25s, got %s", cfg.ShutdownTimeout)
	}
}
