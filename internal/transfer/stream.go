package transfer

import (
	"errors"
	"io"
	"os"

	sderr "sftpdeck/internal/errors"
	"sftpdeck/internal/progress"
	"sftpdeck/internal/remote"
	"sftpdeck/util"
)

func (m *Manager) upload(t *task, fs remote.FileSystem) error {
	src, err := os.Open(t.localPath)
	if err != nil {
		return sderr.WrapIO("open", t.localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return sderr.WrapIO("stat", t.localPath, err)
	}
	t.total.Store(info.Size())

	dst, err := fs.Create(t.remotePath)
	if err != nil {
		return sderr.WrapIO("create", t.remotePath, err)
	}

	// A cancelled upload leaves whatever reached the server in place.
	if err := m.stream(t, src, t.localPath, dst, t.remotePath); err != nil {
		dst.Close()
		return err
	}
	return sderr.WrapIO("close", t.remotePath, dst.Close())
}

func (m *Manager) download(t *task, fs remote.FileSystem) error {
	src, err := fs.Open(t.remotePath)
	if err != nil {
		return sderr.WrapIO("open", t.remotePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return sderr.WrapIO("stat", t.remotePath, err)
	}
	t.total.Store(info.Size())

	dst, err := os.Create(t.localPath)
	if err != nil {
		return sderr.WrapIO("create", t.localPath, err)
	}

	err = m.stream(t, src, t.remotePath, dst, t.localPath)
	if err == nil {
		err = sderr.WrapIO("sync", t.localPath, dst.Sync())
	}
	if cerr := dst.Close(); err == nil {
		err = sderr.WrapIO("close", t.localPath, cerr)
	}
	if err != nil {
		// Cancelled or failed downloads never leave a partial file.
		if rerr := os.Remove(t.localPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			m.logger.Warn("%s %s: removing partial %s: %v", t.dir, t.id, t.localPath, rerr)
		}
	}
	return err
}

// stream copies src to dst one chunk at a time.  A chunk is read before
// the cancel flag is checked, so a cancel that arrives after the last
// chunk was written still ends in completion.
func (m *Manager) stream(t *task, src io.Reader, srcName string, dst io.Writer, dstName string) error {
	buf := util.GetChunk()
	defer util.PutChunk(buf)

	progressName := progress.ProgressName(t.dir)
	for {
		n, rerr := util.ReadChunk(src, *buf)
		if rerr != nil && rerr != io.EOF {
			return sderr.WrapIO("read", srcName, rerr)
		}
		if n == 0 {
			return nil
		}
		if t.cancelled.Load() {
			return sderr.ErrCancelled
		}
		if _, err := dst.Write((*buf)[:n]); err != nil {
			return sderr.WrapIO("write", dstName, err)
		}

		done := t.transferred.Add(int64(n))
		if t.dir == progress.Upload {
			m.metrics.BytesUploaded(int64(n))
		} else {
			m.metrics.BytesDownloaded(int64(n))
		}
		ev := t.event(progressName)
		ev.Transferred = done
		ev.Total = t.total.Load()
		m.sink.Emit(ev)

		if rerr == io.EOF {
			return nil
		}
	}
}
