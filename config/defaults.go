package config

import (
	"os"
	"path/filepath"
	"time"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the profiles file, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds the TCP dial plus SSH handshake.
	DefaultConnTimeout = 30 * time.Second

	// DefaultConnectAttempts is how often a refused or unreachable dial
	// is tried before giving up.
	DefaultConnectAttempts = 3

	// DefaultParallel caps how many transfers may run at once.
	DefaultParallel = 4

	// EnvPrefix is prepended to every supported environment variable.
	EnvPrefix = "SFTPDECK_"
)

// DefaultConfigPath returns the profiles file location,
// $XDG_CONFIG_HOME/sftpdeck/config.toml or the platform equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sftpdeck", "config.toml")
}
