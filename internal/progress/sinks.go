package progress

import (
	"encoding/json"
	"io"
	"sync"

	"sftpdeck/util"
)

// JSONSink writes each event as one line of JSON.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink returns a sink writing newline-delimited JSON to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

// Emit encodes e.  Write errors are dropped; a broken output must not
// stall transfers.
func (s *JSONSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enc.Encode(e) //nolint:errcheck
}

// LogSink reports lifecycle events through a Logger.  Progress events
// go to debug level only.
type LogSink struct {
	Logger *util.Logger
}

// Emit logs e.
func (s LogSink) Emit(e Event) {
	switch e.Name {
	case UploadProgress, DownloadProgress:
		s.Logger.Debug("%s %s: %d/%d bytes", e.Type, e.TransferID, e.Transferred, e.Total)
	case ProcessFinished:
		s.Logger.Verbose("%s %s finished: %s", e.Type, e.TransferID, e.Path)
	case TransferCancelled:
		s.Logger.Info("%s %s cancelled", e.Type, e.TransferID)
	case TransferError:
		s.Logger.Warn("%s %s failed: %s", e.Type, e.TransferID, e.Error)
	}
}

// Recorder keeps every event it receives.  It is meant for tests and
// for callers that inspect a finished batch.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// For returns the recorded events of one transfer in emission order.
func (r *Recorder) For(id string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.TransferID == id {
			out = append(out, e)
		}
	}
	return out
}

// Terminal returns the terminal event of a transfer, if one arrived.
func (r *Recorder) Terminal(id string) (Event, bool) {
	evs := r.For(id)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Terminal() {
			return evs[i], true
		}
	}
	return Event{}, false
}
