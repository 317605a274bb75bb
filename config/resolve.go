package config

import (
	"os"
	"time"
)

// Overrides carries values given on the command line.  Nil pointers
// and empty strings mean "not given".
type Overrides struct {
	Target     string // [user@]host[:port]
	Profile    string
	ConfigPath string

	Port            *int
	Identity        *string
	StrictHostKey   *bool
	KnownHostsPath  *string
	Timeout         *time.Duration
	ConnectAttempts *int
	Parallel        *int
}

// Resolve builds a Config by applying, lowest precedence first: the
// defaults, the profiles file, SFTPDECK_* environment variables, and o.
//
// The profile comes from o.Profile, then SFTPDECK_PROFILE, and
// otherwise from the target host when it names a profile, so
// "sftpdeck prod ls" works like an ssh_config alias.
//
// Resolve does not validate; the caller sets the command and calls
// Validate.
func Resolve(o Overrides) (*Config, error) {
	cfg := Default()

	var (
		user, host string
		port       int
		err        error
	)
	if o.Target != "" {
		if user, host, port, err = ParseTarget(o.Target); err != nil {
			return nil, err
		}
	}

	path, explicit := o.ConfigPath, o.ConfigPath != ""
	if !explicit {
		if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultConfigPath()
		}
	}
	var file *File
	if explicit {
		file, err = LoadFile(ExpandHome(path))
	} else {
		file, err = LoadFileOrEmpty(path)
	}
	if err != nil {
		return nil, err
	}

	profile := o.Profile
	if profile == "" {
		profile = os.Getenv(EnvPrefix + "PROFILE")
	}
	alias := false
	if profile == "" && file.HasProfile(host) {
		profile, alias = host, true
	}
	if err := file.Apply(cfg, profile); err != nil {
		return nil, err
	}

	LoadFromEnv(cfg)

	if host != "" && !alias {
		cfg.Host = host
	}
	if user != "" {
		cfg.User = user
	}
	if port != 0 {
		cfg.Port = port
	}
	if o.Port != nil {
		cfg.Port = *o.Port
	}
	if o.Identity != nil {
		cfg.IdentityFile = ExpandHome(*o.Identity)
	}
	if o.StrictHostKey != nil {
		cfg.StrictHostKey = *o.StrictHostKey
	}
	if o.KnownHostsPath != nil {
		cfg.KnownHostsPath = ExpandHome(*o.KnownHostsPath)
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.ConnectAttempts != nil {
		cfg.ConnectAttempts = *o.ConnectAttempts
	}
	if o.Parallel != nil {
		cfg.Parallel = *o.Parallel
	}
	return cfg, nil
}
