package transfer

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/progress"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/session"
	"sftpdeck/util"
)

// Sessions resolves session ids.  *session.Registry implements it.
type Sessions interface {
	Get(id string) (*session.Session, error)
}

// Options tunes a Manager.  The zero value is usable.
type Options struct {
	// MaxConcurrent caps transfers that may hold a session at once
	// across all sessions.  Zero means no cap.
	MaxConcurrent int64

	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Manager starts transfers and owns the cancellation table.
type Manager struct {
	sessions Sessions
	sink     progress.Sink
	logger   *util.Logger
	metrics  *metrics.Collector
	sem      *semaphore.Weighted

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

// NewManager returns a Manager that reports events to sink.  A nil sink
// discards events.
func NewManager(sessions Sessions, sink progress.Sink, opts Options) *Manager {
	if sink == nil {
		sink = progress.Discard
	}
	m := &Manager{
		sessions: sessions,
		sink:     sink,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		tasks:    make(map[string]*task),
	}
	if opts.MaxConcurrent > 0 {
		m.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return m
}

// StartUpload copies localPath to remotePath on the given session in
// the background and returns the transfer id.
func (m *Manager) StartUpload(sessionID, localPath, remotePath string) (string, error) {
	return m.start(progress.Upload, sessionID, localPath, remotePath)
}

// StartDownload copies remotePath on the given session to localPath in
// the background and returns the transfer id.
func (m *Manager) StartDownload(sessionID, remotePath, localPath string) (string, error) {
	return m.start(progress.Download, sessionID, localPath, remotePath)
}

func (m *Manager) start(dir progress.Direction, sessionID, localPath, remotePath string) (string, error) {
	sess, err := m.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}

	ctx, stop := context.WithCancel(context.Background())
	t := &task{
		dir:        dir,
		sessionID:  sessionID,
		localPath:  localPath,
		remotePath: remotePath,
		ctx:        ctx,
		stop:       stop,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stop()
		return "", sderr.ErrManagerClosed
	}
	t.id = uuid.NewString()
	for m.tasks[t.id] != nil {
		t.id = uuid.NewString()
	}
	m.tasks[t.id] = t
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.TransferStarted()
	m.logger.Verbose("%s %s started: session %s, local %s, remote %s",
		dir, t.id, sessionID, localPath, remotePath)

	go m.run(t, sess)
	return t.id, nil
}

// Cancel asks a running transfer to stop.  The transfer ends with a
// transfer_cancelled event unless it reaches the end of its data
// first.  Unknown and already finished ids yield a NotFoundError.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()

	if !ok {
		return sderr.TransferNotFound(id)
	}
	t.requestCancel()
	m.logger.Debug("%s %s: cancel requested", t.dir, id)
	return nil
}

// Get returns a snapshot of a transfer that has not yet finished.
func (m *Manager) Get(id string) (Transfer, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()

	if !ok {
		return Transfer{}, sderr.TransferNotFound(id)
	}
	return t.snapshot(), nil
}

// Active returns snapshots of every unfinished transfer ordered by id.
func (m *Manager) Active() []Transfer {
	m.mu.Lock()
	out := make([]Transfer, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Transfer) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Wait blocks until every started transfer has emitted its terminal
// event.
func (m *Manager) Wait() { m.wg.Wait() }

// Close cancels every running transfer and waits for them to finish.
// Later starts fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	for _, t := range m.tasks {
		t.requestCancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *Manager) run(t *task, sess *session.Session) {
	defer m.wg.Done()
	defer t.stop()

	if m.sem != nil {
		if err := m.sem.Acquire(t.ctx, 1); err != nil {
			m.finish(t, sderr.ErrCancelled)
			return
		}
		defer m.sem.Release(1)
	}

	err := sess.WithLock(func(fs remote.FileSystem) error {
		if t.cancelled.Load() {
			return sderr.ErrCancelled
		}
		t.setState(Running)
		if t.dir == progress.Upload {
			return m.upload(t, fs)
		}
		return m.download(t, fs)
	})
	m.finish(t, err)
}

// finish records the outcome, drops the task from the table and then
// emits the terminal event, so Cancel already fails by the time a
// subscriber sees it.
func (m *Manager) finish(t *task, err error) {
	var (
		state   State
		outcome metrics.Outcome
		ev      progress.Event
	)
	switch {
	case err == nil:
		state, outcome = Completed, metrics.OutcomeCompleted
		ev = t.event(progress.ProcessFinished)
		m.logger.Verbose("%s %s finished: %d bytes", t.dir, t.id, t.transferred.Load())
	case sderr.KindOf(err) == sderr.KindCancelled:
		state, outcome = Cancelled, metrics.OutcomeCancelled
		ev = t.event(progress.TransferCancelled)
		m.logger.Verbose("%s %s cancelled after %d bytes", t.dir, t.id, t.transferred.Load())
	default:
		state, outcome = Failed, metrics.OutcomeFailed
		ev = t.event(progress.TransferError)
		ev.Error = err.Error()
		m.metrics.RecordError(err.Error())
		m.logger.Warn("%s %s failed: %v", t.dir, t.id, err)
	}
	t.setState(state)

	m.mu.Lock()
	delete(m.tasks, t.id)
	m.mu.Unlock()

	m.metrics.TransferFinished(outcome)
	m.sink.Emit(ev)
}
