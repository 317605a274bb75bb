// Package transfer runs file uploads and downloads in the background.
//
// Each transfer locks its session for its whole life, streams the file
// in util.ChunkSize blocks, and reports progress and exactly one
// terminal event through a progress.Sink.  A Manager owns the table of
// running transfers; cancelling sets a per-transfer flag that the
// streaming loop checks once per chunk.
package transfer

import (
	"context"
	"sync/atomic"

	"sftpdeck/internal/progress"
)

// State is the lifecycle position of a transfer.
type State int32

const (
	Pending State = iota // waiting for an admission slot or the session lock
	Running
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further state change can happen.
func (s State) Terminal() bool { return s >= Completed }

// Transfer is a point-in-time snapshot of one transfer.
type Transfer struct {
	ID          string
	Direction   progress.Direction
	SessionID   string
	LocalPath   string
	RemotePath  string
	Total       int64
	Transferred int64
	State       State
}

// task is the live bookkeeping for one transfer.  Only the task's
// goroutine writes total, transferred and state; snapshots read them
// atomically.
type task struct {
	id         string
	dir        progress.Direction
	sessionID  string
	localPath  string
	remotePath string

	cancelled atomic.Bool
	// ctx is cancelled together with the flag so a transfer waiting for
	// admission wakes up.
	ctx  context.Context
	stop context.CancelFunc

	total       atomic.Int64
	transferred atomic.Int64
	state       atomic.Int32
}

func (t *task) requestCancel() {
	t.cancelled.Store(true)
	t.stop()
}

func (t *task) setState(s State) { t.state.Store(int32(s)) }

func (t *task) snapshot() Transfer {
	return Transfer{
		ID:          t.id,
		Direction:   t.dir,
		SessionID:   t.sessionID,
		LocalPath:   t.localPath,
		RemotePath:  t.remotePath,
		Total:       t.total.Load(),
		Transferred: t.transferred.Load(),
		State:       State(t.state.Load()),
	}
}

// event builds an event for this transfer.  Path is always the remote
// path.
func (t *task) event(name string) progress.Event {
	return progress.Event{
		Name:         name,
		TransferID:   t.id,
		Type:         t.dir,
		ConnectionID: t.sessionID,
		Path:         t.remotePath,
	}
}
