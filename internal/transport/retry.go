package transport

import (
	"context"
	"time"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/retry"
	"sftpdeck/util"
)

// Connector is anything that turns an endpoint into a live connection.
type Connector interface {
	Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error)
}

// RetryConnector retries connection attempts that failed before the SSH
// handshake started.  Handshake, host-key and authentication failures
// are returned immediately.
type RetryConnector struct {
	Next    Connector
	Backoff *retry.Backoff
	Logger  *util.Logger
}

// Connect runs Next.Connect under the backoff policy.
func (c *RetryConnector) Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error) {
	b := *c.Backoff
	b.Retryable = isDialFailure
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.Logger.Warn("connect attempt %d failed: %v (retrying in %s)", attempt, err, wait.Round(time.Millisecond))
	}

	var conn remote.Conn
	err := b.Do(ctx, func(int) error {
		var err error
		conn, err = c.Next.Connect(ctx, ep)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func isDialFailure(err error) bool {
	var ce *sderr.ConnectError
	return sderr.As(err, &ce) && ce.Op == "dial"
}
