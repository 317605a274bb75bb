package util

import "sync"

// ChunkSize is the fixed block size used by transfer streaming loops.
// Cancellation is polled once per chunk, so it also bounds how much
// data moves after a cancel request.
const ChunkSize = 8 * 1024

// chunkPool provides reusable transfer buffers, reducing GC pressure
// when many transfers run back to back.
var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// GetChunk retrieves a ChunkSize buffer from the pool.  Callers must
// return it with [PutChunk] when finished.
func GetChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// PutChunk returns a buffer to the pool for reuse.  Buffers of the
// wrong size are dropped.
func PutChunk(buf *[]byte) {
	if buf == nil || len(*buf) != ChunkSize {
		return
	}
	chunkPool.Put(buf)
}
