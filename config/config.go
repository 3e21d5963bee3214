// Package config loads the gateway configuration from the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	AdminAccessModeLoopback = "loopback"
	AdminAccessModeToken    = "token"
	AdminAccessModeHybrid   = "hybrid"
)

// Env var names read at startup. The two JSON maps are optional; when
// GATEWAY_CREDENTIALS is unset the badger store under DataDir is used, and
// when GATEWAY_UPSTREAMS is unset hosts route by their first label.
const (
	CredentialsEnvVar = "GATEWAY_CREDENTIALS"
	UpstreamsEnvVar   = "GATEWAY_UPSTREAMS"
)

type Config struct {
	Addr     string `validate:"required"`
	LogLevel string `validate:"oneof=trace debug info warn error"`

	DataDir   string
	MasterKey string

	ServiceHostSuffix string `validate:"required"`

	RateLimitCapacity int           `validate:"min=0"`
	RateLimitWindow   time.Duration `validate:"min=1s"`

	MaxRequestBodyBytes int64         `validate:"min=1"`
	RequestTimeout      time.Duration `validate:"min=1s"`
	AdmissionCapacity   int           `validate:"min=1"`

	AdminAccessMode string `validate:"oneof=loopback token hybrid"`
	AdminToken      string

	TrustedProxyCIDRs []*net.IPNet
	LogProxyRequests  bool

	ShutdownTimeout time.Duration `validate:"min=1s"`
}

func Load() (Config, error) {
	cfg := Config{
		Addr:                getEnv("GATEWAY_ADDR", ":38080"),
		LogLevel:            strings.ToLower(getEnv("GATEWAY_LOG_LEVEL", "info")),
		DataDir:             getEnv("GATEWAY_DATA_DIR", defaultDataDir()),
		MasterKey:           getEnv("GATEWAY_MASTER_KEY", ""),
		ServiceHostSuffix:   getEnv("GATEWAY_SERVICE_SUFFIX", "amazonaws.com"),
		RateLimitCapacity:   10,
		RateLimitWindow:     time.Minute,
		MaxRequestBodyBytes: 1_000_000,
		RequestTimeout:      60 * time.Second,
		AdmissionCapacity:   1024,
		AdminAccessMode:     AdminAccessModeHybrid,
		AdminToken:          getEnv("GATEWAY_ADMIN_TOKEN", ""),
		TrustedProxyCIDRs:   []*net.IPNet{},
		LogProxyRequests:    true,
		ShutdownTimeout:     15 * time.Second,
	}

	// The badger credential store needs the sealing key; a static credential
	// map from the environment does not.
	if cfg.MasterKey == "" && strings.TrimSpace(os.Getenv(CredentialsEnvVar)) == "" {
		return Config{}, fmt.Errorf("GATEWAY_MASTER_KEY is required unless %s is set", CredentialsEnvVar)
	}

	if value, err := getEnvIntMin("GATEWAY_RATE_LIMIT", cfg.RateLimitCapacity, 0); err != nil {
		return Config{}, err
	} else {
		cfg.RateLimitCapacity = value
	}
	if seconds, err := getEnvInt("GATEWAY_RATE_LIMIT_WINDOW_SECONDS", int(cfg.RateLimitWindow/time.Second)); err != nil {
		return Config{}, err
	} else {
		cfg.RateLimitWindow = time.Duration(seconds) * time.Second
	}
	if value, err := getEnvInt("GATEWAY_MAX_REQUEST_BODY_BYTES", int(cfg.MaxRequestBodyBytes)); err != nil {
		return Config{}, err
	} else {
		cfg.MaxRequestBodyBytes = int64(value)
	}
	if seconds, err := getEnvInt("GATEWAY_REQUEST_TIMEOUT_SECONDS", int(cfg.RequestTimeout/time.Second)); err != nil {
		return Config{}, err
	} else {
		cfg.RequestTimeout = time.Duration(seconds) * time.Second
	}
	if value, err := getEnvInt("GATEWAY_ADMISSION_CAPACITY", cfg.AdmissionCapacity); err != nil {
		return Config{}, err
	} else {
		cfg.AdmissionCapacity = value
	}
	if seconds, err := getEnvInt("GATEWAY_SHUTDOWN_TIMEOUT_SECONDS", int(cfg.ShutdownTimeout/time.Second)); err != nil {
		return Config{}, err
	} else {
		cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
	}
	if value, err := getEnvBool("GATEWAY_LOG_PROXY_REQUESTS", cfg.LogProxyRequests); err != nil {
		return Config{}, err
	} else {
		cfg.LogProxyRequests = value
	}

	switch value := strings.ToLower(strings.TrimSpace(getEnv("GATEWAY_ADMIN_ACCESS_MODE", cfg.AdminAccessMode))); value {
	case AdminAccessModeLoopback, AdminAccessModeToken, AdminAccessModeHybrid:
		cfg.AdminAccessMode = value
	default:
		return Config{}, fmt.Errorf("invalid GATEWAY_ADMIN_ACCESS_MODE value %q: expected loopback|token|hybrid", value)
	}
	if cfg.AdminAccessMode == AdminAccessModeToken && strings.TrimSpace(cfg.AdminToken) == "" {
		return Config{}, fmt.Errorf("GATEWAY_ADMIN_TOKEN is required when GATEWAY_ADMIN_ACCESS_MODE=token")
	}

	if cidrs, err := parseTrustedProxyCIDRs(getEnv("GATEWAY_TRUSTED_PROXY_CIDRS", "")); err != nil {
		return Config{}, err
	} else {
		cfg.TrustedProxyCIDRs = cidrs
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func defaultDataDir() string {
	if xdgDataHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgDataHome != "" {
		return xdgDataHome + "/sigv4-gateway"
	}
	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		return homeDir + "/.local/share/sigv4-gateway"
	}
	return "./gateway-data"
}

func getEnv(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(name string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s value %q: expected true|false", name, raw)
	}
}

func getEnvInt(name string, defaultValue int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be > 0", name, value)
	}
	return value, nil
}

func getEnvIntMin(name string, defaultValue int, min int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, raw, err)
	}
	if value < min {
		return 0, fmt.Errorf("invalid %s value %d: must be >= %d", name, value, min)
	}
	return value, nil
}

func parseTrustedProxyCIDRs(raw string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, 4)
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, nil
	}

	for _, part := range strings.Split(trimmed, ",") {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}

		if _, network, err := net.ParseCIDR(value); err == nil {
			out = append(out, network)
			continue
		}

		ip := net.ParseIP(value)
		if ip == nil {
			return nil, fmt.Errorf("invalid GATEWAY_TRUSTED_PROXY_CIDRS entry %q: expected CIDR or IP", value)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		mask := net.CIDRMask(bits, bits)
		out = append(out, &net.IPNet{
			IP:   ip.Mask(mask),
			Mask: mask,
		})
	}

	return out, nil
}
