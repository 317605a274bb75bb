// Package metrics provides lightweight, lock-free counters for the
// session registry and transfer engine.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one process.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64

	transfersActive    atomic.Int64
	transfersStarted   atomic.Int64
	transfersCompleted atomic.Int64
	transfersCancelled atomic.Int64
	transfersFailed    atomic.Int64

	bytesUploaded   atomic.Int64
	bytesDownloaded atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total session counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ActiveSessions returns the number of live sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// ── Transfer metrics ─────────────────────────────────────────────────

// Outcome is the terminal state a transfer is recorded under.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// TransferStarted records a newly registered transfer.
func (c *Collector) TransferStarted() {
	if c == nil {
		return
	}
	c.transfersActive.Add(1)
	c.transfersStarted.Add(1)
}

// TransferFinished records a transfer reaching a terminal state.
func (c *Collector) TransferFinished(o Outcome) {
	if c == nil {
		return
	}
	c.transfersActive.Add(-1)
	switch o {
	case OutcomeCompleted:
		c.transfersCompleted.Add(1)
	case OutcomeCancelled:
		c.transfersCancelled.Add(1)
	case OutcomeFailed:
		c.transfersFailed.Add(1)
	}
}

// ActiveTransfers returns the number of non-terminal transfers.
func (c *Collector) ActiveTransfers() int64 {
	if c == nil {
		return 0
	}
	return c.transfersActive.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesUploaded records n bytes written to a remote file.
func (c *Collector) BytesUploaded(n int64) {
	if c == nil {
		return
	}
	c.bytesUploaded.Add(n)
}

// BytesDownloaded records n bytes written to a local file.
func (c *Collector) BytesDownloaded(n int64) {
	if c == nil {
		return
	}
	c.bytesDownloaded.Add(n)
}

// TotalBytesUploaded returns total bytes uploaded.
func (c *Collector) TotalBytesUploaded() int64 {
	if c == nil {
		return 0
	}
	return c.bytesUploaded.Load()
}

// TotalBytesDownloaded returns total bytes downloaded.
func (c *Collector) TotalBytesDownloaded() int64 {
	if c == nil {
		return 0
	}
	return c.bytesDownloaded.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime             string `json:"uptime"`
	SessionsActive     int64  `json:"sessions_active"`
	SessionsTotal      int64  `json:"sessions_total"`
	TransfersActive    int64  `json:"transfers_active"`
	TransfersStarted   int64  `json:"transfers_started"`
	TransfersCompleted int64  `json:"transfers_completed"`
	TransfersCancelled int64  `json:"transfers_cancelled"`
	TransfersFailed    int64  `json:"transfers_failed"`
	BytesUploaded      int64  `json:"bytes_uploaded"`
	BytesDownloaded    int64  `json:"bytes_downloaded"`
	ErrorsTotal        int64  `json:"errors_total"`
	LastError          string `json:"last_error,omitempty"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:             time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:     c.sessionsActive.Load(),
		SessionsTotal:      c.sessionsTotal.Load(),
		TransfersActive:    c.transfersActive.Load(),
		TransfersStarted:   c.transfersStarted.Load(),
		TransfersCompleted: c.transfersCompleted.Load(),
		TransfersCancelled: c.transfersCancelled.Load(),
		TransfersFailed:    c.transfersFailed.Load(),
		BytesUploaded:      c.bytesUploaded.Load(),
		BytesDownloaded:    c.bytesDownloaded.Load(),
		ErrorsTotal:        c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
