// Package transport turns a remote.Endpoint into a live remote.Conn.
// It dials TCP, runs the SSH handshake and authentication, and opens
// the SFTP subsystem.  Everything above this package sees only the
// remote.FileSystem surface.
package transport

import (
	"context"
	"net"
)

// Dialer opens the raw network connection an SSH session runs over.
// Tests substitute dialers that fail or hand back pipes.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}
