// Package sftptest runs an in-process SSH server with the SFTP
// subsystem on a loopback port, in the spirit of net/http/httptest.
// Remote paths are ordinary absolute paths under Server.Root.
package sftptest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"sftpdeck/internal/remote"
)

// Credentials accepted by password authentication.
const (
	User     = "foo"
	Password = "pass"
)

// Server is a running test SSH/SFTP server.
type Server struct {
	Host    string
	Port    int
	Root    string
	HostKey ssh.PublicKey

	ln         net.Listener
	authorized ssh.PublicKey

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithAuthorizedKey accepts public-key logins for key.
func WithAuthorizedKey(key ssh.PublicKey) Option {
	return func(s *Server) { s.authorized = key }
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	s := &Server{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Root:    t.TempDir(),
		HostKey: signer.PublicKey(),
		ln:      ln,
		conns:   make(map[net.Conn]struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == User && string(pass) == Password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if s.authorized != nil && bytes.Equal(key.Marshal(), s.authorized.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown public key for %q", c.User())
		},
	}
	cfg.AddHostKey(signer)

	s.wg.Add(1)
	go s.acceptLoop(cfg)
	t.Cleanup(s.Close)
	return s
}

// Addr returns "host:port".
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Path joins elem onto the server root.
func (s *Server) Path(elem ...string) string {
	return filepath.Join(append([]string{s.Root}, elem...)...)
}

// Endpoint returns an endpoint for this server with the given credential.
func (s *Server) Endpoint(cred remote.Credential) remote.Endpoint {
	return remote.Endpoint{Host: s.Host, Port: s.Port, Username: User, Credential: cred}
}

// PasswordEndpoint returns an endpoint that authenticates successfully.
func (s *Server) PasswordEndpoint() remote.Endpoint {
	return s.Endpoint(remote.Credential{Password: Password})
}

// KnownHostsLine returns a known_hosts entry for the server.
func (s *Server) KnownHostsLine() string {
	return knownhosts.Line([]string{s.Addr()}, s.HostKey)
}

// Close stops accepting, drops open connections, and waits for the
// handlers to exit.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop(cfg *ssh.ServerConfig) {
	defer s.wg.Done()
	for {
		nConn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[nConn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, nConn)
				s.mu.Unlock()
				nConn.Close()
			}()
			s.serveConn(nConn, cfg)
		}()
	}
}

func (s *Server) serveConn(nConn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(nConn, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	var chWG sync.WaitGroup
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unknown channel type") //nolint:errcheck
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func(in <-chan *ssh.Request) {
			for req := range in {
				ok := req.Type == "subsystem" && len(req.Payload) >= 4 && string(req.Payload[4:]) == "sftp"
				req.Reply(ok, nil) //nolint:errcheck
			}
		}(requests)

		chWG.Add(1)
		go func() {
			defer chWG.Done()
			defer ch.Close()
			server, err := sftp.NewServer(ch)
			if err != nil {
				return
			}
			server.Serve() //nolint:errcheck // io.EOF on client close
			server.Close() //nolint:errcheck
		}()
	}
	chWG.Wait()
}
