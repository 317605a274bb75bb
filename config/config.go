// Package config defines the runtime configuration for sftpdeck and
// resolves it from defaults, the profiles file, the environment and the
// command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	sderr "sftpdeck/internal/errors"
)

// Config holds every tuneable for a single sftpdeck invocation.
type Config struct {
	// ── Target ───────────────────────────────────────────────────────
	Host string
	Port int
	User string

	// ── Authentication ───────────────────────────────────────────────
	IdentityFile     string
	Password         string // from SFTPDECK_PASSWORD or the prompt
	Passphrase       string // from SFTPDECK_PASSPHRASE or the prompt
	PromptPassword   bool
	PromptPassphrase bool

	// ── Host keys ────────────────────────────────────────────────────
	StrictHostKey  bool
	KnownHostsPath string

	// ── Behaviour ────────────────────────────────────────────────────
	Timeout         time.Duration
	ConnectAttempts int // dial attempts before giving up; 1 disables retry
	Parallel        int
	Profile         string // profile actually applied, if any

	// ── Command ──────────────────────────────────────────────────────
	Command string
	Args    []string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	JSON    bool
}

// Default returns a Config populated with the values from defaults.go.
func Default() *Config {
	return &Config{
		Port:            DefaultSSHPort,
		Timeout:         DefaultConnTimeout,
		ConnectAttempts: DefaultConnectAttempts,
		Parallel:        DefaultParallel,
	}
}

// ── Target parser ────────────────────────────────────────────────────

// targetRe matches [user@]host[:port].
var targetRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseTarget extracts user, host and port from a string such as
// "deploy@files.example.com:2222".  Missing parts come back empty or
// zero so lower-precedence layers can fill them.
func ParseTarget(spec string) (user, host string, port int, err error) {
	m := targetRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid target %q: expected [user@]host[:port]", spec)
	}
	user, host = m[1], m[2]
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid target port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ── Commands ─────────────────────────────────────────────────────────

// CommandSpec describes the positional arguments of a command.
type CommandSpec struct {
	MinArgs int
	MaxArgs int
	Usage   string
}

// Commands lists every command the CLI accepts.
var Commands = map[string]CommandSpec{
	"ls":    {0, 1, "ls [path]"},
	"stat":  {1, 1, "stat <path>"},
	"mkdir": {1, 1, "mkdir <path>"},
	"rm":    {1, 1, "rm <path>"},
	"rmdir": {1, 1, "rmdir <path>"},
	"mv":    {2, 2, "mv <old> <new>"},
	"get":   {1, 2, "get <remote> [local]"},
	"put":   {1, 2, "put <local> [remote]"},
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is complete and internally
// consistent.  Errors are *errors.ConfigError.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &sderr.ConfigError{
			Field:   "host",
			Message: "required",
			Hint:    "pass [user@]host[:port] before the command",
		}
	}
	if c.User == "" {
		return &sderr.ConfigError{
			Field:   "user",
			Message: "required",
			Hint:    "use user@host, set user in a profile, or export SFTPDECK_USER",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &sderr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    "use -P with a port between 1 and 65535",
		}
	}
	if c.Timeout < 0 {
		return &sderr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	if c.ConnectAttempts < 0 {
		return &sderr.ConfigError{
			Field:   "connect-attempts",
			Value:   c.ConnectAttempts,
			Message: "must not be negative",
			Hint:    "1 disables connect retries",
		}
	}
	if c.Parallel < 0 {
		return &sderr.ConfigError{
			Field:   "parallel",
			Value:   c.Parallel,
			Message: "must not be negative",
			Hint:    "0 removes the limit",
		}
	}
	if c.IdentityFile == "" && c.Password == "" && !c.PromptPassword {
		return &sderr.ConfigError{
			Field:   "identity",
			Message: "no authentication method",
			Hint:    "use -i <key>, --password-prompt, or export SFTPDECK_PASSWORD",
		}
	}
	if c.PromptPassphrase && c.IdentityFile == "" {
		return &sderr.ConfigError{
			Field:   "passphrase-prompt",
			Message: "requires an identity file",
			Hint:    "add -i <key>",
		}
	}

	spec, ok := Commands[c.Command]
	if !ok {
		return &sderr.ConfigError{
			Field:   "command",
			Value:   nilIfEmpty(c.Command),
			Message: "unknown or missing command",
			Hint:    "one of: ls, stat, mkdir, rm, rmdir, mv, get, put",
		}
	}
	if n := len(c.Args); n < spec.MinArgs || n > spec.MaxArgs {
		return &sderr.ConfigError{
			Field:   "command",
			Value:   c.Command,
			Message: fmt.Sprintf("wrong number of arguments (%d)", n),
			Hint:    "usage: " + spec.Usage,
		}
	}
	return nil
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
