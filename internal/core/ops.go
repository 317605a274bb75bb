package core

import (
	"context"
	"fmt"

	"sftpdeck/internal/session"
)

// OpMode runs one synchronous remote operation: ls, stat, mkdir, rm,
// rmdir or mv.
type OpMode struct {
	Target
	Command string
	Args    []string
}

// Run connects, performs the operation and disconnects.
func (m *OpMode) Run(ctx context.Context) error {
	app, id, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, err := app.Registry.Get(id)
	if err != nil {
		return err
	}
	return m.dispatch(sess)
}

func (m *OpMode) arg(i int, def string) string {
	if i < len(m.Args) {
		return m.Args[i]
	}
	return def
}

func (m *OpMode) dispatch(sess *session.Session) error {
	switch m.Command {
	case "ls":
		entries, err := sess.ListDirectory(m.arg(0, "."))
		if err != nil {
			return err
		}
		return writeEntries(m.stdout(), entries, m.JSON)

	case "stat":
		e, err := sess.Stat(m.arg(0, "."))
		if err != nil {
			return err
		}
		return writeEntry(m.stdout(), e, m.JSON)

	case "mkdir":
		return m.done(sess.CreateDirectory(m.arg(0, "")), "created %s", m.arg(0, ""))

	case "rm":
		return m.done(sess.Delete(m.arg(0, ""), false), "removed %s", m.arg(0, ""))

	case "rmdir":
		return m.done(sess.Delete(m.arg(0, ""), true), "removed directory %s", m.arg(0, ""))

	case "mv":
		return m.done(sess.Rename(m.arg(0, ""), m.arg(1, "")), "renamed %s to %s", m.arg(0, ""), m.arg(1, ""))

	default:
		return fmt.Errorf("unknown command %q", m.Command)
	}
}

func (m *OpMode) done(err error, format string, args ...interface{}) error {
	if err == nil {
		m.Logger.Verbose(format, args...)
	}
	return err
}
