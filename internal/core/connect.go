package core

import (
	"context"
	"io"
	"os"

	"sftpdeck/internal/metrics"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/session"
	"sftpdeck/util"
)

// Target holds what every mode needs to reach the server and report
// back to the user.
type Target struct {
	Connector session.Connector
	Endpoint  remote.Endpoint
	Parallel  int
	Logger    *util.Logger
	Metrics   *metrics.Collector
	JSON      bool

	// Stdout defaults to os.Stdout when nil.  Override in tests for
	// deterministic output.
	Stdout io.Writer
}

func (t *Target) stdout() io.Writer {
	if t.Stdout != nil {
		return t.Stdout
	}
	return os.Stdout
}

// connect starts an App and opens one session on it.  The caller owns
// the App and must Close it.
func (t *Target) connect(ctx context.Context) (*App, string, error) {
	app := NewApp(AppOptions{
		Connector: t.Connector,
		Parallel:  t.Parallel,
		Logger:    t.Logger,
		Metrics:   t.Metrics,
	})

	addr := util.FormatAddr(t.Endpoint.Host, t.Endpoint.WithDefaults().Port)
	t.Logger.Verbose("connecting to %s@%s (%s)", t.Endpoint.Username, addr, t.Endpoint.Credential.Method())

	id, err := app.Registry.Connect(ctx, t.Endpoint)
	if err != nil {
		app.Close() //nolint:errcheck
		return nil, "", err
	}
	t.Logger.Verbose("connected to %s", addr)
	return app, id, nil
}
