package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/sftptest"
)

// TestBuildAuthMethods_ExplicitKey verifies that a key file is loaded.
func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	keyPath, _ := sftptest.WriteKey(t, t.TempDir(), "")

	methods, err := BuildAuthMethods(remote.Credential{KeyPath: keyPath})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected exactly one auth method, got %d", len(methods))
	}
}

// TestBuildAuthMethods_Password verifies the password method.
func TestBuildAuthMethods_Password(t *testing.T) {
	methods, err := BuildAuthMethods(remote.Credential{Password: "secret"})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("expected exactly one auth method, got %d", len(methods))
	}
}

// TestBuildAuthMethods_NoMethods verifies a missing credential is rejected.
func TestBuildAuthMethods_NoMethods(t *testing.T) {
	_, err := BuildAuthMethods(remote.Credential{})
	if !errors.Is(err, sderr.ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestBuildAuthMethods_MissingKeyFile(t *testing.T) {
	_, err := BuildAuthMethods(remote.Credential{KeyPath: "/nonexistent/key"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestLoadSigner_EncryptedKey(t *testing.T) {
	keyPath, _ := sftptest.WriteKey(t, t.TempDir(), "hunter2")

	if !KeyNeedsPassphrase(keyPath) {
		t.Error("encrypted key should need a passphrase")
	}

	if _, err := loadSigner(keyPath, ""); !errors.Is(err, errPassphraseRequired) {
		t.Errorf("no passphrase: err = %v, want errPassphraseRequired", err)
	}
	if _, err := loadSigner(keyPath, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}
	if _, err := loadSigner(keyPath, "hunter2"); err != nil {
		t.Errorf("correct passphrase: %v", err)
	}
}

func TestKeyNeedsPassphrase_Plain(t *testing.T) {
	keyPath, _ := sftptest.WriteKey(t, t.TempDir(), "")
	if KeyNeedsPassphrase(keyPath) {
		t.Error("plain key should not need a passphrase")
	}
	if KeyNeedsPassphrase(filepath.Join(t.TempDir(), "missing")) {
		t.Error("missing key should report false")
	}
}

func TestIsAuthFailure(t *testing.T) {
	msg := "ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password], no supported methods remain"
	if !isAuthFailure(fmt.Errorf("%s", msg)) {
		t.Error("should classify as auth failure")
	}
	if isAuthFailure(fmt.Errorf("ssh: handshake failed: EOF")) {
		t.Error("EOF is not an auth failure")
	}
	if isAuthFailure(nil) {
		t.Error("nil is not an auth failure")
	}
}

// TestHostKeyPolicy_Insecure verifies that InsecureIgnoreHostKey is used
// when Strict is false.
func TestHostKeyPolicy_Insecure(t *testing.T) {
	cb, err := HostKeyPolicy{}.callback()
	if err != nil {
		t.Fatal(err)
	}
	if cb == nil {
		t.Fatal("callback should not be nil")
	}
}

func TestHostKeyPolicy_MissingKnownHosts(t *testing.T) {
	_, err := HostKeyPolicy{Strict: true, KnownHosts: filepath.Join(t.TempDir(), "nope")}.callback()
	if err == nil {
		t.Fatal("expected error for missing known_hosts")
	}
}

func TestHostKeyPolicy_KnownHostsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cb, err := HostKeyPolicy{Strict: true, KnownHosts: path}.callback()
	if err != nil || cb == nil {
		t.Fatalf("callback = %v, err = %v", cb, err)
	}
}
