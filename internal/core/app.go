package core

import (
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/progress"
	"sftpdeck/internal/session"
	"sftpdeck/internal/transfer"
	"sftpdeck/util"
)

// AppOptions configures NewApp.
type AppOptions struct {
	Connector session.Connector
	Parallel  int // transfer admission limit; 0 means none
	Logger    *util.Logger
	Metrics   *metrics.Collector
}

// App is the library surface of sftpdeck: a session registry, a
// transfer manager bound to it, and the bus every transfer event is
// published on.  Embedders (a GUI, a daemon) drive it directly; the CLI
// modes each run one App for one command.
type App struct {
	Registry  *session.Registry
	Transfers *transfer.Manager
	Events    *progress.Bus
	Metrics   *metrics.Collector
}

// NewApp wires a registry, a manager and a bus together.  Transfer
// events go to the bus and, at debug verbosity, to the log.
func NewApp(opts AppOptions) *App {
	bus := progress.NewBus(progress.DefaultBuffer)
	reg := session.NewRegistry(opts.Connector, opts.Logger.Named("session"), opts.Metrics)

	tlog := opts.Logger.Named("transfer")
	mgr := transfer.NewManager(reg,
		progress.Multi(bus, progress.LogSink{Logger: tlog}),
		transfer.Options{
			MaxConcurrent: int64(opts.Parallel),
			Logger:        tlog,
			Metrics:       opts.Metrics,
		})

	return &App{Registry: reg, Transfers: mgr, Events: bus, Metrics: opts.Metrics}
}

// Close cancels running transfers, waits for their terminal events,
// disconnects every session and shuts the bus.
func (a *App) Close() error {
	a.Transfers.Close() //nolint:errcheck
	err := a.Registry.Close()
	a.Events.Close()
	return err
}
