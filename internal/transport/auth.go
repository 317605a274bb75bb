package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
)

// errPassphraseRequired is returned when an encrypted key is supplied
// without a passphrase.
var errPassphraseRequired = errors.New("private key is encrypted; passphrase required")

// authTracker records whether the server reached the point of asking
// for our credential.  A handshake that fails after that point is an
// authentication failure rather than a connectivity one.
type authTracker struct {
	attempted atomic.Bool
}

// BuildAuthMethods returns the single SSH authentication method the
// credential describes.  A key takes precedence over a password.
func BuildAuthMethods(cred remote.Credential) ([]ssh.AuthMethod, error) {
	methods, _, err := buildAuthMethods(cred)
	return methods, err
}

func buildAuthMethods(cred remote.Credential) ([]ssh.AuthMethod, *authTracker, error) {
	tr := &authTracker{}

	switch {
	case cred.HasKey():
		signer, err := loadSigner(cred.KeyPath, cred.Passphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("key %s: %w", cred.KeyPath, err)
		}
		m := ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			tr.attempted.Store(true)
			return []ssh.Signer{signer}, nil
		})
		return []ssh.AuthMethod{m}, tr, nil

	case cred.HasPassword():
		password := cred.Password
		m := ssh.PasswordCallback(func() (string, error) {
			tr.attempted.Store(true)
			return password, nil
		})
		return []ssh.AuthMethod{m}, tr, nil

	default:
		return nil, nil, sderr.ErrNoCredential
	}
}

// loadSigner reads and parses a private key, decrypting it when a
// passphrase is given.
func loadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, errPassphraseRequired
		}
		return nil, fmt.Errorf("parsing key: %w", err)
	}
	return signer, nil
}

// KeyNeedsPassphrase reports whether the key at keyPath is encrypted.
// The CLI uses it to decide whether to prompt before connecting.
func KeyNeedsPassphrase(keyPath string) bool {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return false
	}
	_, err = ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	return errors.As(err, &missing)
}

// isAuthFailure recognises the client-side "no methods left" error,
// which x/crypto/ssh reports only as text.
func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

// ── host-key verification ────────────────────────────────────────────

// HostKeyPolicy selects how server host keys are checked.
type HostKeyPolicy struct {
	Strict     bool
	KnownHosts string // defaults to ~/.ssh/known_hosts
}

func (p HostKeyPolicy) callback() (ssh.HostKeyCallback, error) {
	if !p.Strict {
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := p.KnownHosts
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	cb, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", khFile, err)
	}
	return cb, nil
}
