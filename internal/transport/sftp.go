package transport

import (
	"io"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
)

// sftpConn adapts *sftp.Client to remote.Conn and owns the SSH client
// underneath it.
type sftpConn struct {
	client *sftp.Client
	ssh    *ssh.Client
}

var _ remote.Conn = (*sftpConn)(nil)

func (c *sftpConn) ReadDir(path string) ([]os.FileInfo, error) {
	return c.client.ReadDir(path)
}

func (c *sftpConn) Stat(path string) (os.FileInfo, error) {
	return c.client.Stat(path)
}

func (c *sftpConn) Open(path string) (remote.ReadFile, error) {
	f, err := c.client.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *sftpConn) Create(path string) (io.WriteCloser, error) {
	f, err := c.client.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *sftpConn) Mkdir(path string) error { return c.client.Mkdir(path) }

func (c *sftpConn) Remove(path string) error { return c.client.Remove(path) }

func (c *sftpConn) RemoveDirectory(path string) error { return c.client.RemoveDirectory(path) }

func (c *sftpConn) Rename(oldPath, newPath string) error { return c.client.Rename(oldPath, newPath) }

// Close shuts the SFTP subsystem, then the SSH connection.
func (c *sftpConn) Close() error {
	errSFTP := c.client.Close()
	errSSH := c.ssh.Close()
	if errSFTP != nil && !sderr.Is(errSFTP, io.EOF) {
		return errSFTP
	}
	return errSSH
}
