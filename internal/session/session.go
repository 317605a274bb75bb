// Package session tracks authenticated remote connections.
//
// A Session owns one remote.Conn for its whole life and serialises
// every operation on it behind a single exclusive lock; the connection
// is not safe for concurrent readers and writers.  The Registry maps
// session ids to sessions and is the only place sessions are created
// or destroyed.
package session

import (
	"sync"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
	"sftpdeck/util"
)

// Session is one authenticated connection plus the operations that can
// run on it.  All methods are safe for concurrent use; they block while
// another operation (including a transfer) holds the session.
type Session struct {
	id       string
	endpoint remote.Endpoint
	logger   *util.Logger

	mu     sync.Mutex
	conn   remote.Conn
	closed bool
}

func newSession(id string, ep remote.Endpoint, conn remote.Conn, logger *util.Logger) *Session {
	return &Session{id: id, endpoint: ep, conn: conn, logger: logger}
}

// ID returns the registry id of the session.
func (s *Session) ID() string { return s.id }

// Endpoint returns the endpoint the session was opened against, with
// secrets removed.
func (s *Session) Endpoint() remote.Endpoint {
	ep := s.endpoint
	ep.Credential.Password = ""
	ep.Credential.Passphrase = ""
	return ep
}

// WithLock runs fn with exclusive use of the connection.  The lock is
// held until fn returns, so long-running callers block every other
// operation on this session.
func (s *Session) WithLock(fn func(fs remote.FileSystem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return sderr.SessionNotFound(s.id)
	}
	return fn(s.conn)
}

// ListDirectory returns the visible entries of path in display order.
func (s *Session) ListDirectory(path string) ([]Entry, error) {
	var entries []Entry
	err := s.WithLock(func(fs remote.FileSystem) error {
		infos, err := fs.ReadDir(path)
		if err != nil {
			return sderr.WrapIO("list", path, err)
		}
		entries = buildEntries(path, infos)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session %s: listed %s (%d entries)", s.id, path, len(entries))
	return entries, nil
}

// Stat returns metadata for a single remote path.
func (s *Session) Stat(path string) (Entry, error) {
	var e Entry
	err := s.WithLock(func(fs remote.FileSystem) error {
		fi, err := fs.Stat(path)
		if err != nil {
			return sderr.WrapIO("stat", path, err)
		}
		e = newEntry(path, fi)
		return nil
	})
	return e, err
}

// CreateDirectory creates a single directory.
func (s *Session) CreateDirectory(path string) error {
	return s.WithLock(func(fs remote.FileSystem) error {
		return sderr.WrapIO("mkdir", path, fs.Mkdir(path))
	})
}

// Delete removes a file, or an empty directory when isDir is set.
func (s *Session) Delete(path string, isDir bool) error {
	return s.WithLock(func(fs remote.FileSystem) error {
		if isDir {
			return sderr.WrapIO("rmdir", path, fs.RemoveDirectory(path))
		}
		return sderr.WrapIO("unlink", path, fs.Remove(path))
	})
}

// Rename moves oldPath to newPath.
func (s *Session) Rename(oldPath, newPath string) error {
	return s.WithLock(func(fs remote.FileSystem) error {
		return sderr.WrapIO("rename", oldPath, fs.Rename(oldPath, newPath))
	})
}

// close releases the connection once any in-flight operation has
// finished.  Later calls return nil.
func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
