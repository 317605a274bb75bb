// Package remote describes what a session needs from the far side: an
// endpoint to reach, a credential to present, and a small file-system
// surface to drive once connected.
//
// The SSH/SFTP implementation lives in internal/transport; tests plug
// in their own FileSystem to control timing and failures.
package remote

import (
	"io"
	"os"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// Credential carries exactly one authentication method.  When both a
// key and a password are set, the key wins.
type Credential struct {
	Password   string
	KeyPath    string
	Passphrase string // only used with KeyPath
}

// HasKey reports whether key-based authentication is configured.
func (c Credential) HasKey() bool { return c.KeyPath != "" }

// HasPassword reports whether password authentication is configured.
func (c Credential) HasPassword() bool { return c.Password != "" }

// Empty reports whether no authentication method is configured.
func (c Credential) Empty() bool { return !c.HasKey() && !c.HasPassword() }

// Method names the authentication method that will be attempted.
func (c Credential) Method() string {
	switch {
	case c.HasKey():
		return "publickey"
	case c.HasPassword():
		return "password"
	default:
		return "none"
	}
}

// Endpoint identifies a remote host and the account to log in as.
type Endpoint struct {
	Host       string
	Port       int
	Username   string
	Credential Credential
}

// WithDefaults returns a copy with the port defaulted.
func (e Endpoint) WithDefaults() Endpoint {
	if e.Port == 0 {
		e.Port = DefaultPort
	}
	return e
}

// ReadFile is a remote file opened for reading.
type ReadFile interface {
	io.ReadCloser
	Stat() (os.FileInfo, error)
}

// FileSystem is the file-access surface of one authenticated
// connection.  Implementations need not be safe for concurrent use;
// sessions serialise every call.
type FileSystem interface {
	ReadDir(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	Open(path string) (ReadFile, error)
	Create(path string) (io.WriteCloser, error)
	Mkdir(path string) error
	Remove(path string) error
	RemoveDirectory(path string) error
	Rename(oldPath, newPath string) error
}

// Conn is a FileSystem bound to a live connection.  Close releases the
// connection and everything layered on it.
type Conn interface {
	FileSystem
	Close() error
}
