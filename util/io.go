package util

import (
	"errors"
	"io"
)

// ReadChunk fills buf from r, returning fewer bytes only at end of
// input.  A short final chunk is returned together with io.EOF, and a
// drained reader yields (0, io.EOF).  Short reads from the transport
// are absorbed here so progress advances in whole chunks.
func ReadChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return n, io.EOF
	default:
		return n, err
	}
}
