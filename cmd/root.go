// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"sftpdeck/config"
	"sftpdeck/internal/core"
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/transport"
	"sftpdeck/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X sftpdeck/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// readSecret prompts on stderr and reads a line without echo.  Tests
// replace it.
var readSecret = func(prompt string) (string, error) { //nolint:gochecknoglobals
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// stdout is where --dry-run and --version print.  Tests replace it.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Execute parses args and runs the requested command.
func Execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sftpdeck", flag.ContinueOnError)

	var (
		o          config.Overrides
		identity   string
		port       int
		strict     bool
		knownHosts string
		timeoutSec int
		attempts   int
		parallel   int

		promptPassword, promptPassphrase bool
		jsonOut, dryRun                  bool
		verbose                          int
		showVersion, showHelp            bool
	)

	// ── connection ───────────────────────────────────────────────
	fs.IntVarP(&port, "port", "P", config.DefaultSSHPort, "SSH port")
	fs.IntVar(&timeoutSec, "timeout", int(config.DefaultConnTimeout/time.Second), "Connect timeout in seconds")
	fs.IntVar(&attempts, "connect-attempts", config.DefaultConnectAttempts, "Dial attempts before giving up (1 = no retry)")
	fs.StringVar(&o.Profile, "profile", "", "Profile from the config file")
	fs.StringVar(&o.ConfigPath, "config", "", "Config file (default "+config.DefaultConfigPath()+")")

	// ── authentication ───────────────────────────────────────────
	fs.StringVarP(&identity, "identity", "i", "", "SSH private key file")
	fs.BoolVar(&promptPassword, "password-prompt", false, "Prompt for the SSH password")
	fs.BoolVar(&promptPassphrase, "passphrase-prompt", false, "Prompt for the key passphrase")
	fs.BoolVar(&strict, "strict-hostkey", false, "Verify host keys against known_hosts")
	fs.StringVar(&knownHosts, "known-hosts", "", "Custom known_hosts path")

	// ── transfers ────────────────────────────────────────────────
	fs.IntVar(&parallel, "parallel", config.DefaultParallel, "Maximum concurrent transfers (0 = unlimited)")

	// ── output ───────────────────────────────────────────────────
	fs.BoolVar(&jsonOut, "json", false, "Print listings and transfer events as JSON")
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&dryRun, "dry-run", false, "Resolve and validate the configuration, then exit")

	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "sftpdeck %s\n", version)
		return nil
	}

	// ── positional arguments ─────────────────────────────────────
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("expected [user@]host[:port] <command> (use --help for usage)")
	}
	o.Target = rest[0]

	// Only flags the user actually set may override lower layers.
	if fs.Changed("port") {
		o.Port = &port
	}
	if fs.Changed("identity") {
		o.Identity = &identity
	}
	if fs.Changed("strict-hostkey") {
		o.StrictHostKey = &strict
	}
	if fs.Changed("known-hosts") {
		o.KnownHostsPath = &knownHosts
	}
	if fs.Changed("timeout") {
		d := time.Duration(timeoutSec) * time.Second
		o.Timeout = &d
	}
	if fs.Changed("connect-attempts") {
		o.ConnectAttempts = &attempts
	}
	if fs.Changed("parallel") {
		o.Parallel = &parallel
	}

	// ── resolve ──────────────────────────────────────────────────
	cfg, err := config.Resolve(o)
	if err != nil {
		return err
	}
	cfg.Command, cfg.Args = rest[1], rest[2:]
	cfg.JSON = cfg.JSON || jsonOut
	if verbose > 0 {
		cfg.Verbose = verbose
	}
	cfg.PromptPassword = promptPassword
	cfg.PromptPassphrase = promptPassphrase
	if cfg.IdentityFile != "" && cfg.Passphrase == "" && transport.KeyNeedsPassphrase(cfg.IdentityFile) {
		cfg.PromptPassphrase = true
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun {
		printResolved(stdout, cfg)
		return nil
	}

	if err := promptSecrets(cfg); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.Verbose >= int(util.LogDebug) {
		logger.SetTimestamps(true)
	}
	m := metrics.New()

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	err = mode.Run(ctx)

	if cfg.Verbose >= int(util.LogVerbose) {
		logger.Verbose("metrics:\n%s", m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func promptSecrets(cfg *config.Config) error {
	if cfg.PromptPassphrase && cfg.Passphrase == "" {
		pass, err := readSecret(fmt.Sprintf("Enter passphrase for %s: ", cfg.IdentityFile))
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		cfg.Passphrase = pass
	}
	// A key credential wins over a password, so only ask when it is
	// the method that will be used.
	if cfg.PromptPassword && cfg.IdentityFile == "" && cfg.Password == "" {
		pass, err := readSecret(fmt.Sprintf("%s@%s's password: ", cfg.User, cfg.Host))
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		cfg.Password = pass
	}
	return nil
}

func printResolved(w io.Writer, cfg *config.Config) {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	fmt.Fprintf(w, "target:         %s@%s\n", cfg.User, util.FormatAddr(cfg.Host, cfg.Port))
	fmt.Fprintf(w, "profile:        %s\n", cfg.Profile)
	fmt.Fprintf(w, "identity:       %s\n", cfg.IdentityFile)
	fmt.Fprintf(w, "password:       %s\n", mask(cfg.Password))
	fmt.Fprintf(w, "strict hostkey: %t\n", cfg.StrictHostKey)
	fmt.Fprintf(w, "known hosts:    %s\n", cfg.KnownHostsPath)
	fmt.Fprintf(w, "timeout:        %s\n", cfg.Timeout)
	fmt.Fprintf(w, "attempts:       %d\n", cfg.ConnectAttempts)
	fmt.Fprintf(w, "parallel:       %d\n", cfg.Parallel)
	fmt.Fprintf(w, "command:        %s %v\n", cfg.Command, cfg.Args)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `sftpdeck – SFTP client v%s

Browse and transfer files on SSH servers.

Usage:
  sftpdeck [options] [user@]host[:port] <command> [args]

Commands:
  ls [path]                  List a directory
  stat <path>                Show one entry
  mkdir <path>               Create a directory
  rm <path>                  Remove a file
  rmdir <path>               Remove an empty directory
  mv <old> <new>             Rename
  get <remote> [local]       Download (Ctrl-C cancels)
  put <local> [remote]       Upload (Ctrl-C cancels)

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  sftpdeck -i ~/.ssh/id_ed25519 deploy@files.example.com ls /srv
  sftpdeck --password-prompt me@nas.local get /backups/db.tar.gz
  sftpdeck prod put ./release.tar /releases/release.tar   (profile "prod")
  SFTPDECK_PASSWORD=... sftpdeck --json me@host ls
`)
}
