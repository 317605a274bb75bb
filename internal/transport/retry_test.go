package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/retry"
	"sftpdeck/internal/sftptest"
	"sftpdeck/util"
)

// scriptedConnector returns errs in order, then delegates to next.
type scriptedConnector struct {
	errs  []error
	next  Connector
	calls int
}

func (s *scriptedConnector) Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return s.next.Connect(ctx, ep)
}

func quickBackoff(attempts int) *retry.Backoff {
	return &retry.Backoff{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: attempts}
}

func TestRetryConnector_RetriesDialFailures(t *testing.T) {
	srv := sftptest.NewServer(t)
	refused := sderr.WrapConnect("dial", srv.Host, srv.Port, errors.New("connection refused"))
	script := &scriptedConnector{errs: []error{refused, refused}, next: &SSHConnector{}}

	c := &RetryConnector{Next: script, Backoff: quickBackoff(3), Logger: util.NewLogger(int(util.LogQuiet))}
	conn, err := c.Connect(context.Background(), srv.PasswordEndpoint())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, 3, script.calls)
}

func TestRetryConnector_GivesUp(t *testing.T) {
	refused := sderr.WrapConnect("dial", "127.0.0.1", 1, errors.New("connection refused"))
	script := &scriptedConnector{errs: []error{refused, refused, refused, refused}}

	c := &RetryConnector{Next: script, Backoff: quickBackoff(2)}
	_, err := c.Connect(context.Background(), remote.Endpoint{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.True(t, sderr.IsConnect(err))
	assert.Equal(t, 2, script.calls)
}

func TestRetryConnector_AuthNotRetried(t *testing.T) {
	srv := sftptest.NewServer(t)
	script := &scriptedConnector{next: &SSHConnector{}}

	c := &RetryConnector{Next: script, Backoff: quickBackoff(5)}
	_, err := c.Connect(context.Background(), srv.Endpoint(remote.Credential{Password: "wrong"}))
	require.Error(t, err)
	assert.True(t, sderr.IsAuth(err), "got %v", err)
	assert.Equal(t, 1, script.calls)
}

func TestRetryConnector_HandshakeNotRetried(t *testing.T) {
	hs := sderr.WrapConnect("handshake", "h", 22, errors.New("reset"))
	script := &scriptedConnector{errs: []error{hs, hs}}

	c := &RetryConnector{Next: script, Backoff: quickBackoff(5)}
	_, err := c.Connect(context.Background(), remote.Endpoint{Host: "h"})
	require.Error(t, err)
	assert.Equal(t, 1, script.calls)
}
