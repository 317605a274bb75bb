// Package errors provides the error taxonomy shared by every sftpdeck
// package.
//
// Synchronous operations return one of the structured types below so
// callers can branch on the kind of failure with [KindOf] instead of
// matching message text.  Transfer outcomes never travel through these
// return values; they are reported on the progress event stream.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrCancelled marks a transfer aborted by request.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrNoCredential is wrapped in an AuthError when an endpoint
	// carries neither a password nor a private key.
	ErrNoCredential = errors.New("no authentication method provided")

	// ErrSessionClosed is returned by operations on a session handle
	// whose connection has already been released.
	ErrSessionClosed = errors.New("session is closed")

	// ErrManagerClosed is returned when a transfer is started on a
	// manager that is shutting down.
	ErrManagerClosed = errors.New("transfer manager is closed")
)

// Kind classifies an error into the taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnect
	KindAuth
	KindNotFound
	KindIO
	KindCancelled
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindCancelled:
		return "cancelled"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ── Structured error types ───────────────────────────────────────────

// ConnectError represents an unreachable host or a failed handshake.
type ConnectError struct {
	Op   string // "dial", "handshake", "subsystem"
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError represents a missing or rejected credential.
type AuthError struct {
	User string
	Host string
	Port int
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s@%s:%d: %v", e.User, e.Host, e.Port, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown session or transfer id.
type NotFoundError struct {
	Resource string // "session" or "transfer"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IOError represents a local or remote read/write/stat failure.
type IOError struct {
	Op   string // "list", "mkdir", "open", "read", "write", ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// WrapConnect creates a ConnectError.
func WrapConnect(op, host string, port int, err error) *ConnectError {
	return &ConnectError{Op: op, Host: host, Port: port, Err: err}
}

// WrapAuth creates an AuthError.
func WrapAuth(user, host string, port int, err error) *AuthError {
	return &AuthError{User: user, Host: host, Port: port, Err: err}
}

// WrapIO creates an IOError.  A nil err yields nil so call sites can
// wrap a result unconditionally.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// SessionNotFound returns a NotFoundError for a session id.
func SessionNotFound(id string) *NotFoundError {
	return &NotFoundError{Resource: "session", ID: id}
}

// TransferNotFound returns a NotFoundError for a transfer id.
func TransferNotFound(id string) *NotFoundError {
	return &NotFoundError{Resource: "transfer", ID: id}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf reports which taxonomy bucket err falls into.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		ce  *ConnectError
		ae  *AuthError
		nfe *NotFoundError
		ioe *IOError
		cfe *ConfigError
	)
	switch {
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &ce):
		return KindConnect
	case errors.As(err, &nfe):
		return KindNotFound
	case errors.As(err, &ioe):
		return KindIO
	case errors.As(err, &cfe):
		return KindConfig
	}
	return KindUnknown
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsConnect reports whether err is a ConnectError.
func IsConnect(err error) bool { return KindOf(err) == KindConnect }

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use sftpdeck/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
