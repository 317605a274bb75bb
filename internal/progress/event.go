// Package progress carries transfer lifecycle events from the transfer
// engine to whoever is listening.
//
// A Sink receives every event of a transfer from that transfer's single
// goroutine, so per-transfer order is the order of Emit calls and the
// terminal event is always the last one.  Implementations must not
// reorder events of one transfer.
package progress

// Event names as observed by subscribers.
const (
	UploadProgress    = "upload_progress"
	DownloadProgress  = "download_progress"
	TransferCancelled = "transfer_cancelled"
	TransferError     = "transfer_error"
	ProcessFinished   = "process_finished"
)

// Direction of a transfer.
type Direction string

const (
	Upload   Direction = "upload"
	Download Direction = "download"
)

// Event is one lifecycle or progress notification.  Fields that do not
// apply to an event name are left zero and omitted from JSON.
type Event struct {
	Name         string    `json:"event"`
	TransferID   string    `json:"transfer_id"`
	Type         Direction `json:"type"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Path         string    `json:"path,omitempty"`
	Transferred  int64     `json:"transferred,omitempty"`
	Total        int64     `json:"total,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Terminal reports whether the event ends its transfer.
func (e Event) Terminal() bool {
	switch e.Name {
	case TransferCancelled, TransferError, ProcessFinished:
		return true
	}
	return false
}

// ProgressName returns the progress event name for a direction.
func ProgressName(d Direction) string {
	if d == Upload {
		return UploadProgress
	}
	return DownloadProgress
}

// Sink receives transfer events.  Emit must be safe for concurrent use
// across transfers.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans each event out to every sink in order.  Nil sinks are
// skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
