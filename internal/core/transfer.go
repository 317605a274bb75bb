package core

import (
	"context"
	"errors"
	"io"
	"os"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/progress"
)

// TransferMode runs one upload or download and follows its events
// until the transfer ends.  Cancelling ctx (SIGINT in the CLI) cancels
// the transfer and still waits for its terminal event.
type TransferMode struct {
	Target
	Direction  progress.Direction
	LocalPath  string
	RemotePath string

	// Progress receives the human-readable progress line.  It defaults
	// to os.Stderr; JSON mode writes events to Stdout instead.
	Progress io.Writer
}

func (m *TransferMode) sink() progress.Sink {
	if m.JSON {
		return progress.NewJSONSink(m.stdout())
	}
	w := m.Progress
	if w == nil {
		w = os.Stderr
	}
	label := m.RemotePath
	if m.Direction == progress.Upload {
		label = m.LocalPath
	}
	return &progressPrinter{w: w, label: label}
}

// Run connects, starts the transfer and blocks until it is terminal.
// A cancelled transfer returns errors.ErrCancelled; a failed one an
// *errors.IOError carrying the reported message.
func (m *TransferMode) Run(ctx context.Context) error {
	app, sid, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// Subscribe first so the opening progress events are not missed.
	sub := app.Events.Subscribe(nil)
	defer sub.Unsubscribe()

	var id string
	if m.Direction == progress.Upload {
		id, err = app.Transfers.StartUpload(sid, m.LocalPath, m.RemotePath)
	} else {
		id, err = app.Transfers.StartDownload(sid, m.RemotePath, m.LocalPath)
	}
	if err != nil {
		return err
	}
	m.Logger.Verbose("%s %s: %s <-> %s", m.Direction, id, m.LocalPath, m.RemotePath)

	out := m.sink()
	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			m.Logger.Info("interrupted, cancelling %s", id)
			if err := app.Transfers.Cancel(id); err != nil && !sderr.IsNotFound(err) {
				return err
			}

		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("event stream closed before the transfer ended")
			}
			if ev.TransferID != id {
				continue
			}
			out.Emit(ev)
			if ev.Terminal() {
				return m.result(ev)
			}
		}
	}
}

func (m *TransferMode) result(ev progress.Event) error {
	switch ev.Name {
	case progress.ProcessFinished:
		return nil
	case progress.TransferCancelled:
		return sderr.ErrCancelled
	default:
		path := m.RemotePath
		if m.Direction == progress.Upload {
			path = m.LocalPath
		}
		return &sderr.IOError{Op: string(m.Direction), Path: path, Err: errors.New(ev.Error)}
	}
}
