// Package core is the orchestration layer.  It composes the session
// registry, the transfer manager and the event bus into an App, and
// provides a builder that turns a Config into the Mode for one CLI
// command.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  transfer + progress  →  core  →  cmd (CLI)
package core

import "context"

// Mode is one complete CLI command.  Each mode owns its full lifecycle
// from connecting to the server to tearing the session down.
type Mode interface {
	Run(ctx context.Context) error
}
