package transport

import (
	"context"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
	"sftpdeck/util"
)

// DefaultConnTimeout bounds the TCP dial plus SSH handshake.
const DefaultConnTimeout = 30 * time.Second

// SSHConnector opens SFTP connections.  The zero value dials plain TCP
// with the default timeout and skips host-key verification.
type SSHConnector struct {
	Dialer      Dialer
	Timeout     time.Duration
	HostKeys    HostKeyPolicy
	Logger      *util.Logger
	SFTPOptions []sftp.ClientOption
}

// Connect dials the endpoint, authenticates, and starts the SFTP
// subsystem.  Failures are *errors.ConnectError or *errors.AuthError.
func (c *SSHConnector) Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error) {
	ep = ep.WithDefaults()

	authMethods, tracker, err := buildAuthMethods(ep.Credential)
	if err != nil {
		return nil, sderr.WrapAuth(ep.Username, ep.Host, ep.Port, err)
	}

	hkCallback, err := c.HostKeys.callback()
	if err != nil {
		return nil, sderr.WrapConnect("hostkey", ep.Host, ep.Port, err)
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultConnTimeout
	}

	cfg := &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         timeout,
	}

	addr := util.FormatAddr(ep.Host, ep.Port)
	c.Logger.Debug("dialing %s as %s (%s)", addr, ep.Username, ep.Credential.Method())

	dialer := c.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Timeout: timeout}
	}
	tcpConn, err := dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, sderr.WrapConnect("dial", ep.Host, ep.Port, err)
	}

	// The handshake has no context of its own; a deadline plus closing
	// the socket on cancellation keeps it bounded.
	tcpConn.SetDeadline(time.Now().Add(timeout)) //nolint:errcheck
	stop := context.AfterFunc(ctx, func() { tcpConn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, cfg)
	stop()
	if err != nil {
		tcpConn.Close()
		if tracker.attempted.Load() || isAuthFailure(err) {
			return nil, sderr.WrapAuth(ep.Username, ep.Host, ep.Port, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, sderr.WrapConnect("handshake", ep.Host, ep.Port, err)
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)

	sc, err := sftp.NewClient(client, c.SFTPOptions...)
	if err != nil {
		client.Close()
		return nil, sderr.WrapConnect("subsystem", ep.Host, ep.Port, err)
	}

	c.Logger.Verbose("connected to %s as %s", addr, ep.Username)
	return &sftpConn{client: sc, ssh: client}, nil
}
