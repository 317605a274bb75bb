package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags and the target argument  (Resolve, cmd/root.go)
//   2. Environment variables  (this file)
//   3. Profiles file  (profile.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the SFTPDECK_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "USER"); v != "" {
		cfg.User = v
	}
	if v := envInt(EnvPrefix + "PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv(EnvPrefix + "IDENTITY"); v != "" {
		cfg.IdentityFile = ExpandHome(v)
	}
	if v := os.Getenv(EnvPrefix + "PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvPrefix + "PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if envBool(EnvPrefix + "STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv(EnvPrefix + "KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = ExpandHome(v)
	}
	if v := envInt(EnvPrefix + "TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt(EnvPrefix + "CONNECT_ATTEMPTS"); v > 0 {
		cfg.ConnectAttempts = v
	}
	if v, ok := envIntSet(EnvPrefix + "PARALLEL"); ok && v >= 0 {
		cfg.Parallel = v
	}

	// Output
	if v := envInt(EnvPrefix + "VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool(EnvPrefix + "JSON") {
		cfg.JSON = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	n, _ := envIntSet(key)
	return n
}

// envIntSet distinguishes an explicit 0 from an unset or malformed var.
func envIntSet(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
