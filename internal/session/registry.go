package session

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/remote"
	"sftpdeck/util"
)

// Connector performs the handshake and authentication for an endpoint.
// transport.SSHConnector is the production implementation.
type Connector interface {
	Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error)
}

// Registry maps session ids to live sessions.  Its lock guards only the
// map; it is never held while a session operation runs.
type Registry struct {
	connector Connector
	logger    *util.Logger
	metrics   *metrics.Collector

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry that opens connections with c.
// logger and m may be nil.
func NewRegistry(c Connector, logger *util.Logger, m *metrics.Collector) *Registry {
	return &Registry{
		connector: c,
		logger:    logger,
		metrics:   m,
		sessions:  make(map[string]*Session),
	}
}

// Connect authenticates against ep and registers the resulting session.
// Errors are *errors.ConnectError or *errors.AuthError.
func (r *Registry) Connect(ctx context.Context, ep remote.Endpoint) (string, error) {
	ep = ep.WithDefaults()
	if ep.Credential.Empty() {
		return "", sderr.WrapAuth(ep.Username, ep.Host, ep.Port, sderr.ErrNoCredential)
	}

	conn, err := r.connector.Connect(ctx, ep)
	if err != nil {
		r.metrics.RecordError(err.Error())
		if k := sderr.KindOf(err); k != sderr.KindConnect && k != sderr.KindAuth {
			err = sderr.WrapConnect("connect", ep.Host, ep.Port, err)
		}
		r.logger.Warn("connect %s@%s failed: %v", ep.Username, util.FormatAddr(ep.Host, ep.Port), err)
		return "", err
	}

	r.mu.Lock()
	id := uuid.NewString()
	for r.sessions[id] != nil {
		id = uuid.NewString()
	}
	r.sessions[id] = newSession(id, ep, conn, r.logger)
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Verbose("session %s opened for %s@%s", id, ep.Username, util.FormatAddr(ep.Host, ep.Port))
	return id, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, sderr.SessionNotFound(id)
	}
	return s, nil
}

// Disconnect unregisters id and releases its connection.  The id is
// gone as soon as Disconnect is called, but the connection is closed only
// once the session lock is free.  A background transfer holds that lock
// for its whole run, so Disconnect blocks until the transfer completes,
// fails or is cancelled.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return sderr.SessionNotFound(id)
	}

	r.metrics.SessionClosed()
	if err := s.close(); err != nil {
		r.logger.Warn("session %s: closing connection: %v", id, err)
	}
	r.logger.Verbose("session %s closed", id)
	return nil
}

// IDs returns the ids of all live sessions in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close disconnects every session.
func (r *Registry) Close() error {
	for _, id := range r.IDs() {
		// Already-removed ids are fine during shutdown.
		r.Disconnect(id) //nolint:errcheck
	}
	return nil
}
