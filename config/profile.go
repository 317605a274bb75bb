package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	sderr "sftpdeck/internal/errors"
)

// File is the decoded profiles file:
//
//	parallel = 4
//	timeout = 20          # seconds
//	connect_attempts = 3
//
//	[hosts.prod]
//	host = "files.example.com"
//	port = 2222
//	user = "deploy"
//	identity = "~/.ssh/id_ed25519"
//	strict_hostkey = true
//	known_hosts = "~/.ssh/known_hosts"
type File struct {
	Parallel        *int                   `toml:"parallel"`
	Timeout         int                    `toml:"timeout"`
	ConnectAttempts int                    `toml:"connect_attempts"`
	Hosts           map[string]HostProfile `toml:"hosts"`
}

// HostProfile is one [hosts.<name>] table.
type HostProfile struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	User          string `toml:"user"`
	Identity      string `toml:"identity"`
	StrictHostKey *bool  `toml:"strict_hostkey"`
	KnownHosts    string `toml:"known_hosts"`
}

// LoadFile parses a profiles file.  Unknown keys are errors so a typo
// never silently changes behaviour.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return nil, &sderr.ConfigError{
			Field:   "config",
			Value:   path,
			Message: "unknown keys: " + strings.Join(keys, ", "),
			Hint:    "known keys are parallel, timeout and [hosts.<name>] host/port/user/identity/strict_hostkey/known_hosts",
		}
	}
	return &f, nil
}

// LoadFileOrEmpty is LoadFile, except that a missing file yields an
// empty File.
func LoadFileOrEmpty(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}
	return LoadFile(path)
}

// Apply overlays the file's global values and the named profile onto
// cfg.  An empty name applies only the globals.
func (f *File) Apply(cfg *Config, name string) error {
	if f.Parallel != nil {
		cfg.Parallel = *f.Parallel
	}
	if f.Timeout > 0 {
		cfg.Timeout = time.Duration(f.Timeout) * time.Second
	}
	if f.ConnectAttempts > 0 {
		cfg.ConnectAttempts = f.ConnectAttempts
	}
	if name == "" {
		return nil
	}

	p, ok := f.Hosts[name]
	if !ok {
		return &sderr.ConfigError{
			Field:   "profile",
			Value:   name,
			Message: "no such profile",
			Hint:    "define it as [hosts." + name + "] in the config file",
		}
	}
	cfg.Profile = name
	if p.Host != "" {
		cfg.Host = p.Host
	}
	if p.Port != 0 {
		cfg.Port = p.Port
	}
	if p.User != "" {
		cfg.User = p.User
	}
	if p.Identity != "" {
		cfg.IdentityFile = ExpandHome(p.Identity)
	}
	if p.StrictHostKey != nil {
		cfg.StrictHostKey = *p.StrictHostKey
	}
	if p.KnownHosts != "" {
		cfg.KnownHostsPath = ExpandHome(p.KnownHosts)
	}
	return nil
}

// HasProfile reports whether a [hosts.<name>] table exists.
func (f *File) HasProfile(name string) bool {
	_, ok := f.Hosts[name]
	return ok
}
