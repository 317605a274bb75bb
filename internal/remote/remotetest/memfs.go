// Package remotetest provides an in-memory remote.Conn with hooks for
// stalling or failing individual reads and writes, plus a Connector
// that hands such connections out.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"sftpdeck/internal/remote"
)

type node struct {
	data  []byte
	dir   bool
	mode  os.FileMode
	mtime time.Time
}

// MemFS is an in-memory remote.Conn.  Paths are slash-separated and
// absolute; "/" always exists.
type MemFS struct {
	// IncludeParent makes ReadDir report a ".." entry for non-root
	// directories, as some servers do.
	IncludeParent bool

	// OnRead runs before each Read on an opened file with the offset
	// about to be read.  A non-nil error fails the read.
	OnRead func(path string, off int64) error

	// OnWrite runs after each Write to a created file has been stored,
	// with the file's new length.  A non-nil error fails the write.
	OnWrite func(path string, size int64) error

	mu     sync.Mutex
	nodes  map[string]*node
	closed bool
	ops    []string
}

var _ remote.Conn = (*MemFS)(nil)

// NewMemFS returns an empty file system containing only "/".
func NewMemFS() *MemFS {
	return &MemFS{nodes: map[string]*node{
		"/": {dir: true, mode: fs.ModeDir | 0o755, mtime: time.Unix(0, 0)},
	}}
}

// AddFile stores a file, creating missing parent directories.
func (m *MemFS) AddFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.mkdirAllLocked(path.Dir(p))
	m.nodes[p] = &node{data: slices.Clone(data), mode: 0o644, mtime: time.Unix(1700000000, 0)}
}

// AddDir creates a directory and its parents.
func (m *MemFS) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(path.Clean(p))
}

func (m *MemFS) mkdirAllLocked(p string) {
	for cur := p; ; cur = path.Dir(cur) {
		if _, ok := m.nodes[cur]; !ok {
			m.nodes[cur] = &node{dir: true, mode: fs.ModeDir | 0o755, mtime: time.Unix(1700000000, 0)}
		}
		if cur == "/" {
			return
		}
	}
}

// Contents returns a copy of a file's data and whether it exists.
func (m *MemFS) Contents(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[path.Clean(p)]
	if !ok || n.dir {
		return nil, false
	}
	return slices.Clone(n.data), true
}

// Exists reports whether p is present.
func (m *MemFS) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[path.Clean(p)]
	return ok
}

// Closed reports whether Close has been called.
func (m *MemFS) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ops returns the operations performed so far, e.g. "mkdir /a".
func (m *MemFS) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ops)
}

func (m *MemFS) record(format string, args ...interface{}) error {
	if m.closed {
		return fmt.Errorf("memfs: use of closed connection")
	}
	m.ops = append(m.ops, fmt.Sprintf(format, args...))
	return nil
}

func pathErr(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}

// ── remote.FileSystem ────────────────────────────────────────────────

func (m *MemFS) ReadDir(p string) ([]os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("readdir %s", p); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	n, ok := m.nodes[p]
	if !ok {
		return nil, pathErr("readdir", p, fs.ErrNotExist)
	}
	if !n.dir {
		return nil, pathErr("readdir", p, fmt.Errorf("not a directory"))
	}

	var out []os.FileInfo
	if m.IncludeParent && p != "/" {
		parent := m.nodes[path.Dir(p)]
		out = append(out, info("..", parent))
	}
	for name, child := range m.nodes {
		if name != "/" && path.Dir(name) == p {
			out = append(out, info(path.Base(name), child))
		}
	}
	return out, nil
}

func (m *MemFS) Stat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("stat %s", p); err != nil {
		return nil, err
	}
	n, ok := m.nodes[path.Clean(p)]
	if !ok {
		return nil, pathErr("stat", p, fs.ErrNotExist)
	}
	return info(path.Base(p), n), nil
}

func (m *MemFS) Open(p string) (remote.ReadFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("open %s", p); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	n, ok := m.nodes[p]
	if !ok {
		return nil, pathErr("open", p, fs.ErrNotExist)
	}
	if n.dir {
		return nil, pathErr("open", p, fmt.Errorf("is a directory"))
	}
	return &memReader{fs: m, path: p, data: slices.Clone(n.data), info: info(path.Base(p), n)}, nil
}

func (m *MemFS) Create(p string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("create %s", p); err != nil {
		return nil, err
	}
	p = path.Clean(p)
	parent, ok := m.nodes[path.Dir(p)]
	if !ok || !parent.dir {
		return nil, pathErr("create", p, fs.ErrNotExist)
	}
	if n, ok := m.nodes[p]; ok && n.dir {
		return nil, pathErr("create", p, fmt.Errorf("is a directory"))
	}
	m.nodes[p] = &node{mode: 0o644, mtime: time.Now()}
	return &memWriter{fs: m, path: p}, nil
}

func (m *MemFS) Mkdir(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("mkdir %s", p); err != nil {
		return err
	}
	p = path.Clean(p)
	if _, ok := m.nodes[p]; ok {
		return pathErr("mkdir", p, fs.ErrExist)
	}
	if parent, ok := m.nodes[path.Dir(p)]; !ok || !parent.dir {
		return pathErr("mkdir", p, fs.ErrNotExist)
	}
	m.nodes[p] = &node{dir: true, mode: fs.ModeDir | 0o755, mtime: time.Now()}
	return nil
}

func (m *MemFS) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("remove %s", p); err != nil {
		return err
	}
	p = path.Clean(p)
	n, ok := m.nodes[p]
	if !ok {
		return pathErr("remove", p, fs.ErrNotExist)
	}
	if n.dir {
		return pathErr("remove", p, fmt.Errorf("is a directory"))
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) RemoveDirectory(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("rmdir %s", p); err != nil {
		return err
	}
	p = path.Clean(p)
	n, ok := m.nodes[p]
	if !ok {
		return pathErr("rmdir", p, fs.ErrNotExist)
	}
	if !n.dir {
		return pathErr("rmdir", p, fmt.Errorf("not a directory"))
	}
	for name := range m.nodes {
		if name != p && strings.HasPrefix(name, p+"/") {
			return pathErr("rmdir", p, fmt.Errorf("directory not empty"))
		}
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("rename %s %s", oldPath, newPath); err != nil {
		return err
	}
	oldPath, newPath = path.Clean(oldPath), path.Clean(newPath)
	n, ok := m.nodes[oldPath]
	if !ok {
		return pathErr("rename", oldPath, fs.ErrNotExist)
	}
	if _, ok := m.nodes[newPath]; ok {
		return pathErr("rename", newPath, fs.ErrExist)
	}
	delete(m.nodes, oldPath)
	m.nodes[newPath] = n
	return nil
}

// Close marks the connection closed; every later call fails.
func (m *MemFS) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ── file handles ─────────────────────────────────────────────────────

type memReader struct {
	fs   *MemFS
	path string
	data []byte
	off  int64
	info os.FileInfo
}

func (r *memReader) Read(b []byte) (int, error) {
	if hook := r.fs.OnRead; hook != nil {
		if err := hook(r.path, r.off); err != nil {
			return 0, err
		}
	}
	if r.off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(b, r.data[r.off:])
	r.off += int64(n)
	return n, nil
}

func (r *memReader) Stat() (os.FileInfo, error) { return r.info, nil }

func (r *memReader) Close() error { return nil }

type memWriter struct {
	fs   *MemFS
	path string
}

func (w *memWriter) Write(b []byte) (int, error) {
	w.fs.mu.Lock()
	n, ok := w.fs.nodes[w.path]
	if !ok || w.fs.closed {
		w.fs.mu.Unlock()
		return 0, pathErr("write", w.path, fs.ErrClosed)
	}
	n.data = append(n.data, b...)
	size := int64(len(n.data))
	w.fs.mu.Unlock()

	if hook := w.fs.OnWrite; hook != nil {
		if err := hook(w.path, size); err != nil {
			return len(b), err
		}
	}
	return len(b), nil
}

func (w *memWriter) Close() error { return nil }

// ── file info ────────────────────────────────────────────────────────

type memInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
}

func info(name string, n *node) os.FileInfo {
	return memInfo{name: name, size: int64(len(n.data)), mode: n.mode, mtime: n.mtime}
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() os.FileMode  { return i.mode }
func (i memInfo) ModTime() time.Time { return i.mtime }
func (i memInfo) IsDir() bool        { return i.mode.IsDir() }
func (i memInfo) Sys() interface{}   { return nil }

// ── connector ────────────────────────────────────────────────────────

// Connector hands out MemFS connections.  When Err is set every
// Connect fails with it.
type Connector struct {
	Err error
	// New builds the connection for each Connect; defaults to NewMemFS.
	New func() *MemFS

	mu    sync.Mutex
	conns []*MemFS
}

func (c *Connector) Connect(ctx context.Context, ep remote.Endpoint) (remote.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	conn := NewMemFS()
	if c.New != nil {
		conn = c.New()
	}
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	return conn, nil
}

// Conns returns every connection handed out so far.
func (c *Connector) Conns() []*MemFS {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.conns)
}
