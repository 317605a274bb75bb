package core

import (
	"fmt"
	"path"
	"path/filepath"

	"sftpdeck/config"
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/progress"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/retry"
	"sftpdeck/internal/session"
	"sftpdeck/internal/transport"
	"sftpdeck/util"
)

// Build constructs the Mode for cfg.Command.  This is the single
// dispatch point between the CLI and the library.  m may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	target := Target{
		Connector: buildConnector(cfg, logger),
		Endpoint:  buildEndpoint(cfg),
		Parallel:  cfg.Parallel,
		Logger:    logger,
		Metrics:   m,
		JSON:      cfg.JSON,
	}

	switch cfg.Command {
	case "get":
		return buildDownload(target, cfg.Args), nil
	case "put":
		return buildUpload(target, cfg.Args), nil
	case "ls", "stat", "mkdir", "rm", "rmdir", "mv":
		return &OpMode{Target: target, Command: cfg.Command, Args: cfg.Args}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// ── mode builders ────────────────────────────────────────────────────

// buildDownload handles "get <remote> [local]".  The local name
// defaults to the remote base name in the working directory.
func buildDownload(target Target, args []string) Mode {
	mode := &TransferMode{Target: target, Direction: progress.Download, RemotePath: args[0]}
	if len(args) > 1 {
		mode.LocalPath = args[1]
	} else {
		mode.LocalPath = path.Base(args[0])
	}
	return mode
}

// buildUpload handles "put <local> [remote]".  The remote name defaults
// to the local base name in the remote working directory.
func buildUpload(target Target, args []string) Mode {
	mode := &TransferMode{Target: target, Direction: progress.Upload, LocalPath: args[0]}
	if len(args) > 1 {
		mode.RemotePath = args[1]
	} else {
		mode.RemotePath = filepath.Base(args[0])
	}
	return mode
}

// ── shared helpers ───────────────────────────────────────────────────

// buildConnector creates the SSH/SFTP connector for the given config,
// retrying failed dials when more than one attempt is allowed.
func buildConnector(cfg *config.Config, logger *util.Logger) session.Connector {
	ssh := &transport.SSHConnector{
		Dialer:  &transport.TCPDialer{Timeout: cfg.Timeout},
		Timeout: cfg.Timeout,
		HostKeys: transport.HostKeyPolicy{
			Strict:     cfg.StrictHostKey,
			KnownHosts: cfg.KnownHostsPath,
		},
		Logger: logger.Named("transport"),
	}
	if cfg.ConnectAttempts <= 1 {
		return ssh
	}
	return &transport.RetryConnector{
		Next:    ssh,
		Backoff: retry.ForConnect(cfg.ConnectAttempts),
		Logger:  logger.Named("transport"),
	}
}

// buildEndpoint maps the resolved config onto an endpoint.
func buildEndpoint(cfg *config.Config) remote.Endpoint {
	return remote.Endpoint{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Credential: remote.Credential{
			Password:   cfg.Password,
			KeyPath:    cfg.IdentityFile,
			Passphrase: cfg.Passphrase,
		},
	}
}
