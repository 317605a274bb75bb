package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/metrics"
	"sftpdeck/internal/progress"
	"sftpdeck/internal/remote"
	"sftpdeck/internal/remote/remotetest"
	"sftpdeck/internal/session"
	"sftpdeck/util"
)

type fixture struct {
	mgr     *Manager
	reg     *session.Registry
	rec     *progress.Recorder
	metrics *metrics.Collector
	conns   *remotetest.Connector
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		rec:     &progress.Recorder{},
		metrics: metrics.New(),
		conns:   &remotetest.Connector{},
	}
	f.reg = session.NewRegistry(f.conns, nil, f.metrics)
	opts.Metrics = f.metrics
	f.mgr = NewManager(f.reg, f.rec, opts)
	t.Cleanup(func() {
		f.mgr.Close()
		f.reg.Close()
	})
	return f
}

// connect opens a session backed by a fresh MemFS prepared by setup.
func (f *fixture) connect(t *testing.T, setup func(*remotetest.MemFS)) (string, *remotetest.MemFS) {
	t.Helper()
	mem := remotetest.NewMemFS()
	if setup != nil {
		setup(mem)
	}
	f.conns.New = func() *remotetest.MemFS { return mem }
	id, err := f.reg.Connect(context.Background(), remote.Endpoint{
		Host:       "files.example.com",
		Username:   "foo",
		Credential: remote.Credential{Password: "pass"},
	})
	require.NoError(t, err)
	return id, mem
}

// gate parks a hook until the test opens it.
type gate struct {
	reached chan struct{}
	release chan struct{}
	hit     sync.Once
	open    sync.Once
}

func newGate(t *testing.T) *gate {
	g := &gate{reached: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(g.Open)
	return g
}

func (g *gate) Wait() {
	g.hit.Do(func() { close(g.reached) })
	<-g.release
}

func (g *gate) Open() { g.open.Do(func() { close(g.release) }) }

func (g *gate) Reached(t *testing.T) {
	t.Helper()
	select {
	case <-g.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("hook never reached")
	}
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func writeLocal(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func names(evs []progress.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

func TestUpload_ProgressAndCompletion(t *testing.T) {
	f := newFixture(t, Options{})
	sid, mem := f.connect(t, func(m *remotetest.MemFS) { m.AddDir("/upload") })
	data := payload(20000)
	local := writeLocal(t, "a.bin", data)

	id, err := f.mgr.StartUpload(sid, local, "/upload/a.bin")
	require.NoError(t, err)
	f.mgr.Wait()

	evs := f.rec.For(id)
	require.Equal(t, []string{
		progress.UploadProgress, progress.UploadProgress, progress.UploadProgress,
		progress.ProcessFinished,
	}, names(evs))

	var seen []int64
	for _, e := range evs[:3] {
		assert.EqualValues(t, 20000, e.Total)
		assert.Equal(t, progress.Upload, e.Type)
		assert.Equal(t, sid, e.ConnectionID)
		assert.Equal(t, "/upload/a.bin", e.Path)
		seen = append(seen, e.Transferred)
	}
	assert.Equal(t, []int64{8192, 16384, 20000}, seen)

	got, ok := mem.Contents("/upload/a.bin")
	require.True(t, ok)
	assert.True(t, bytes.Equal(data, got))

	err = f.mgr.Cancel(id)
	assert.True(t, sderr.IsNotFound(err), "finished transfer must be unknown, got %v", err)
	assert.Empty(t, f.mgr.Active())

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.TransfersCompleted)
	assert.EqualValues(t, 20000, snap.BytesUploaded)
	assert.EqualValues(t, 0, snap.TransfersActive)
}

func TestDownload_ExactChunkMultiple(t *testing.T) {
	f := newFixture(t, Options{})
	data := payload(2 * util.ChunkSize)
	sid, _ := f.connect(t, func(m *remotetest.MemFS) { m.AddFile("/srv/b.bin", data) })
	local := filepath.Join(t.TempDir(), "b.bin")

	id, err := f.mgr.StartDownload(sid, "/srv/b.bin", local)
	require.NoError(t, err)
	f.mgr.Wait()

	evs := f.rec.For(id)
	require.Equal(t, []string{
		progress.DownloadProgress, progress.DownloadProgress, progress.ProcessFinished,
	}, names(evs))
	assert.EqualValues(t, 16384, evs[1].Transferred)
	assert.EqualValues(t, 16384, evs[1].Total)

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.EqualValues(t, 16384, f.metrics.Snapshot().BytesDownloaded)
}

func TestEmptyFile_FinishesWithoutProgress(t *testing.T) {
	f := newFixture(t, Options{})
	sid, mem := f.connect(t, nil)
	local := writeLocal(t, "empty", nil)

	id, err := f.mgr.StartUpload(sid, local, "/empty")
	require.NoError(t, err)
	f.mgr.Wait()

	assert.Equal(t, []string{progress.ProcessFinished}, names(f.rec.For(id)))
	assert.True(t, mem.Exists("/empty"))
}

func TestStart_UnknownSession(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.mgr.StartUpload("nope", "/tmp/x", "/x")
	assert.True(t, sderr.IsNotFound(err))
	_, err = f.mgr.StartDownload("nope", "/x", "/tmp/x")
	assert.True(t, sderr.IsNotFound(err))
	assert.Empty(t, f.rec.Events())
}

func TestCancel_Unknown(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.mgr.Cancel("missing")

	var nfe *sderr.NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "transfer", nfe.Resource)
}

func TestCancel_UploadMidFlightKeepsPartial(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, mem := f.connect(t, func(m *remotetest.MemFS) {
		m.OnWrite = func(_ string, size int64) error {
			if size == util.ChunkSize {
				g.Wait()
			}
			return nil
		}
	})
	local := writeLocal(t, "big.bin", payload(5*util.ChunkSize))

	id, err := f.mgr.StartUpload(sid, local, "/big.bin")
	require.NoError(t, err)
	g.Reached(t)

	tr, err := f.mgr.Get(id)
	require.NoError(t, err)
	assert.Equal(t, Running, tr.State)
	require.NoError(t, f.mgr.Cancel(id))
	require.NoError(t, f.mgr.Cancel(id), "repeat cancel while running is harmless")
	g.Open()
	f.mgr.Wait()

	evs := f.rec.For(id)
	require.Equal(t, []string{progress.UploadProgress, progress.TransferCancelled}, names(evs))
	assert.Equal(t, progress.Upload, evs[1].Type)

	got, ok := mem.Contents("/big.bin")
	require.True(t, ok, "partial remote file stays")
	assert.Len(t, got, util.ChunkSize)
	assert.EqualValues(t, 1, f.metrics.Snapshot().TransfersCancelled)
}

func TestCancel_DownloadMidFlightRemovesLocal(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/big.bin", payload(5*util.ChunkSize))
		m.OnRead = func(_ string, off int64) error {
			if off == util.ChunkSize {
				g.Wait()
			}
			return nil
		}
	})
	local := filepath.Join(t.TempDir(), "big.bin")

	id, err := f.mgr.StartDownload(sid, "/big.bin", local)
	require.NoError(t, err)
	g.Reached(t)
	require.NoError(t, f.mgr.Cancel(id))
	g.Open()
	f.mgr.Wait()

	evs := f.rec.For(id)
	require.Equal(t, []string{progress.DownloadProgress, progress.TransferCancelled}, names(evs))
	assert.EqualValues(t, util.ChunkSize, evs[0].Transferred)

	_, err = os.Stat(local)
	assert.True(t, os.IsNotExist(err), "cancelled download must not leave a local file")
}

func TestCancel_AfterFinalChunkCompletes(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		f := newFixture(t, Options{})
		g := newGate(t)
		data := payload(util.ChunkSize)
		sid, _ := f.connect(t, func(m *remotetest.MemFS) {
			m.AddFile("/one.bin", data)
			m.OnRead = func(_ string, off int64) error {
				if off == int64(len(data)) {
					g.Wait()
				}
				return nil
			}
		})
		local := filepath.Join(t.TempDir(), "one.bin")

		id, err := f.mgr.StartDownload(sid, "/one.bin", local)
		require.NoError(t, err)
		g.Reached(t)
		require.NoError(t, f.mgr.Cancel(id))
		g.Open()
		f.mgr.Wait()

		ev, ok := f.rec.Terminal(id)
		require.True(t, ok)
		assert.Equal(t, progress.ProcessFinished, ev.Name)
		got, err := os.ReadFile(local)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("upload", func(t *testing.T) {
		f := newFixture(t, Options{})
		g := newGate(t)
		const size = 10000
		sid, _ := f.connect(t, func(m *remotetest.MemFS) {
			m.OnWrite = func(_ string, n int64) error {
				if n == size {
					g.Wait()
				}
				return nil
			}
		})
		local := writeLocal(t, "u.bin", payload(size))

		id, err := f.mgr.StartUpload(sid, local, "/u.bin")
		require.NoError(t, err)
		g.Reached(t)
		require.NoError(t, f.mgr.Cancel(id))
		g.Open()
		f.mgr.Wait()

		evs := f.rec.For(id)
		require.Equal(t, []string{
			progress.UploadProgress, progress.UploadProgress, progress.ProcessFinished,
		}, names(evs))
		assert.EqualValues(t, size, evs[1].Transferred)
	})
}

func TestTransferErrors(t *testing.T) {
	boom := fmt.Errorf("connection lost")

	t.Run("missing remote file", func(t *testing.T) {
		f := newFixture(t, Options{})
		sid, _ := f.connect(t, nil)
		local := filepath.Join(t.TempDir(), "x")

		id, err := f.mgr.StartDownload(sid, "/nope", local)
		require.NoError(t, err)
		f.mgr.Wait()

		ev, ok := f.rec.Terminal(id)
		require.True(t, ok)
		assert.Equal(t, progress.TransferError, ev.Name)
		assert.Contains(t, ev.Error, "open /nope")
		_, err = os.Stat(local)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing local file", func(t *testing.T) {
		f := newFixture(t, Options{})
		sid, mem := f.connect(t, nil)

		id, err := f.mgr.StartUpload(sid, filepath.Join(t.TempDir(), "absent"), "/x")
		require.NoError(t, err)
		f.mgr.Wait()

		ev, _ := f.rec.Terminal(id)
		assert.Equal(t, progress.TransferError, ev.Name)
		assert.False(t, mem.Exists("/x"))
	})

	t.Run("read failure mid download", func(t *testing.T) {
		f := newFixture(t, Options{})
		sid, _ := f.connect(t, func(m *remotetest.MemFS) {
			m.AddFile("/r.bin", payload(3*util.ChunkSize))
			m.OnRead = func(_ string, off int64) error {
				if off >= util.ChunkSize {
					return boom
				}
				return nil
			}
		})
		local := filepath.Join(t.TempDir(), "r.bin")

		id, err := f.mgr.StartDownload(sid, "/r.bin", local)
		require.NoError(t, err)
		f.mgr.Wait()

		evs := f.rec.For(id)
		require.Equal(t, []string{progress.DownloadProgress, progress.TransferError}, names(evs))
		assert.Contains(t, evs[1].Error, "connection lost")
		_, err = os.Stat(local)
		assert.True(t, os.IsNotExist(err), "failed download must not leave a local file")
	})

	t.Run("write failure mid upload", func(t *testing.T) {
		f := newFixture(t, Options{})
		sid, _ := f.connect(t, func(m *remotetest.MemFS) {
			m.OnWrite = func(_ string, size int64) error {
				if size > util.ChunkSize {
					return boom
				}
				return nil
			}
		})
		local := writeLocal(t, "w.bin", payload(3*util.ChunkSize))

		id, err := f.mgr.StartUpload(sid, local, "/w.bin")
		require.NoError(t, err)
		f.mgr.Wait()

		evs := f.rec.For(id)
		require.Equal(t, []string{progress.UploadProgress, progress.TransferError}, names(evs))
		assert.Contains(t, evs[1].Error, "write /w.bin")
		assert.EqualValues(t, 1, f.metrics.Snapshot().TransfersFailed)
	})

	t.Run("session gone before start", func(t *testing.T) {
		f := newFixture(t, Options{})
		g := newGate(t)
		sid, _ := f.connect(t, func(m *remotetest.MemFS) {
			m.AddFile("/a", payload(10))
			m.OnRead = func(string, int64) error { g.Wait(); return nil }
		})
		first, err := f.mgr.StartDownload(sid, "/a", filepath.Join(t.TempDir(), "a"))
		require.NoError(t, err)
		g.Reached(t)

		second, err := f.mgr.StartDownload(sid, "/a", filepath.Join(t.TempDir(), "b"))
		require.NoError(t, err)

		disconnected := make(chan error, 1)
		go func() { disconnected <- f.reg.Disconnect(sid) }()
		// Disconnect queues behind the running transfer; let it in first.
		time.Sleep(20 * time.Millisecond)
		g.Open()
		require.NoError(t, <-disconnected)
		f.mgr.Wait()

		ev, _ := f.rec.Terminal(first)
		assert.Equal(t, progress.ProcessFinished, ev.Name)
		ev, _ = f.rec.Terminal(second)
		assert.Contains(t, []string{progress.TransferError, progress.ProcessFinished}, ev.Name)
	})
}

func TestManyTransfers_SomeCancelled(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/blocker", payload(100))
		for i := 0; i < 8; i++ {
			m.AddFile(fmt.Sprintf("/f%d", i), payload(3*util.ChunkSize+i))
		}
		m.OnRead = func(p string, _ int64) error {
			if p == "/blocker" {
				g.Wait()
			}
			return nil
		}
	})
	dir := t.TempDir()

	blocker, err := f.mgr.StartDownload(sid, "/blocker", filepath.Join(dir, "blocker"))
	require.NoError(t, err)
	g.Reached(t)

	ids := make([]string, 8)
	for i := range ids {
		ids[i], err = f.mgr.StartDownload(sid, fmt.Sprintf("/f%d", i), filepath.Join(dir, fmt.Sprintf("f%d", i)))
		require.NoError(t, err)
	}
	assert.Len(t, f.mgr.Active(), 9)

	cancelled := map[string]bool{ids[1]: true, ids[4]: true, ids[6]: true}
	for id := range cancelled {
		require.NoError(t, f.mgr.Cancel(id))
	}
	g.Open()
	f.mgr.Wait()

	ev, _ := f.rec.Terminal(blocker)
	assert.Equal(t, progress.ProcessFinished, ev.Name)
	for i, id := range ids {
		ev, ok := f.rec.Terminal(id)
		require.True(t, ok, "transfer %d has no terminal event", i)
		local := filepath.Join(dir, fmt.Sprintf("f%d", i))
		if cancelled[id] {
			assert.Equal(t, progress.TransferCancelled, ev.Name, "transfer %d", i)
			_, err := os.Stat(local)
			assert.True(t, os.IsNotExist(err))
		} else {
			assert.Equal(t, progress.ProcessFinished, ev.Name, "transfer %d", i)
			info, err := os.Stat(local)
			require.NoError(t, err)
			assert.EqualValues(t, 3*util.ChunkSize+i, info.Size())
		}

		// Exactly one terminal event, and it is last.
		evs := f.rec.For(id)
		for _, e := range evs[:len(evs)-1] {
			assert.False(t, e.Terminal())
		}
	}

	snap := f.metrics.Snapshot()
	assert.EqualValues(t, 9, snap.TransfersStarted)
	assert.EqualValues(t, 3, snap.TransfersCancelled)
	assert.EqualValues(t, 6, snap.TransfersCompleted)
}

func TestAdmissionLimit_CancelWhileQueued(t *testing.T) {
	f := newFixture(t, Options{MaxConcurrent: 1})
	g := newGate(t)
	sidA, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/a", payload(10))
		m.OnRead = func(string, int64) error { g.Wait(); return nil }
	})
	sidB, memB := f.connect(t, func(m *remotetest.MemFS) { m.AddFile("/b", payload(10)) })
	dir := t.TempDir()

	first, err := f.mgr.StartDownload(sidA, "/a", filepath.Join(dir, "a"))
	require.NoError(t, err)
	g.Reached(t)

	queued, err := f.mgr.StartDownload(sidB, "/b", filepath.Join(dir, "b"))
	require.NoError(t, err)
	tr, err := f.mgr.Get(queued)
	require.NoError(t, err)
	assert.Equal(t, Pending, tr.State)

	require.NoError(t, f.mgr.Cancel(queued))
	require.Eventually(t, func() bool {
		_, ok := f.rec.Terminal(queued)
		return ok
	}, 5*time.Second, 5*time.Millisecond, "queued transfer should end while the slot is still taken")

	ev, _ := f.rec.Terminal(queued)
	assert.Equal(t, progress.TransferCancelled, ev.Name)
	assert.NotContains(t, memB.Ops(), "open /b")

	g.Open()
	f.mgr.Wait()
	ev, _ = f.rec.Terminal(first)
	assert.Equal(t, progress.ProcessFinished, ev.Name)
}

func TestTransferBlocksSessionOperations(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/data/a", payload(10))
		m.OnRead = func(string, int64) error { g.Wait(); return nil }
	})
	_, err := f.mgr.StartDownload(sid, "/data/a", filepath.Join(t.TempDir(), "a"))
	require.NoError(t, err)
	g.Reached(t)

	sess, err := f.reg.Get(sid)
	require.NoError(t, err)
	listed := make(chan []session.Entry, 1)
	go func() {
		entries, _ := sess.ListDirectory("/data")
		listed <- entries
	}()

	select {
	case <-listed:
		t.Fatal("listing ran while a transfer held the session")
	case <-time.After(50 * time.Millisecond):
	}

	g.Open()
	select {
	case entries := <-listed:
		require.Len(t, entries, 1)
		assert.Equal(t, "a", entries[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("listing never ran")
	}
}

func TestTerminalEventSeesEntryRemoved(t *testing.T) {
	f := newFixture(t, Options{})
	sid, _ := f.connect(t, func(m *remotetest.MemFS) { m.AddFile("/a", payload(10)) })

	results := make(chan error, 1)
	f.mgr.sink = progress.SinkFunc(func(e progress.Event) {
		if e.Terminal() {
			results <- f.mgr.Cancel(e.TransferID)
		}
	})

	_, err := f.mgr.StartDownload(sid, "/a", filepath.Join(t.TempDir(), "a"))
	require.NoError(t, err)
	f.mgr.Wait()
	assert.True(t, sderr.IsNotFound(<-results))
}

func TestClose_CancelsRunning(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/big", payload(4*util.ChunkSize))
		m.OnRead = func(_ string, off int64) error {
			if off == util.ChunkSize {
				g.Wait()
			}
			return nil
		}
	})
	id, err := f.mgr.StartDownload(sid, "/big", filepath.Join(t.TempDir(), "big"))
	require.NoError(t, err)
	g.Reached(t)

	closed := make(chan struct{})
	go func() {
		f.mgr.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)
	g.Open()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	ev, _ := f.rec.Terminal(id)
	assert.Equal(t, progress.TransferCancelled, ev.Name)
}

func TestStart_AfterClose(t *testing.T) {
	f := newFixture(t, Options{})
	sid, _ := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/a", payload(10))
	})
	require.NoError(t, f.mgr.Close())

	_, err := f.mgr.StartDownload(sid, "/a", filepath.Join(t.TempDir(), "a"))
	assert.ErrorIs(t, err, sderr.ErrManagerClosed)
	assert.Empty(t, f.mgr.Active())
	assert.Empty(t, f.rec.Events())
}

// TestDisconnect_WaitsForTransfer shows that Disconnect returns only
// once the transfer holding the session is done.
func TestDisconnect_WaitsForTransfer(t *testing.T) {
	f := newFixture(t, Options{})
	g := newGate(t)
	sid, mem := f.connect(t, func(m *remotetest.MemFS) {
		m.AddFile("/big", payload(4*util.ChunkSize))
		m.OnRead = func(_ string, off int64) error {
			if off == util.ChunkSize {
				g.Wait()
			}
			return nil
		}
	})
	id, err := f.mgr.StartDownload(sid, "/big", filepath.Join(t.TempDir(), "big"))
	require.NoError(t, err)
	g.Reached(t)

	disconnected := make(chan struct{})
	go func() {
		f.reg.Disconnect(sid) //nolint:errcheck
		close(disconnected)
	}()

	select {
	case <-disconnected:
		t.Fatal("Disconnect returned while the transfer held the session")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, mem.Closed())

	require.NoError(t, f.mgr.Cancel(id))
	g.Open()

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("Disconnect did not return after the transfer ended")
	}
	assert.True(t, mem.Closed())
	ev, ok := f.rec.Terminal(id)
	require.True(t, ok)
	assert.Equal(t, progress.TransferCancelled, ev.Name)
}
