/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// bodyChunkSize is the read granularity for streamed bodies.
const bodyChunkSize = 32 * 1024

// A BodyReader produces response body bytes on demand. The connection
// calls Open once, then Read until a zero-length read or io.EOF, then
// Close exactly once (also on failure and on peer disconnect).
//
// A reader may wrap another reader; composition is opaque to the
// connection. Readers must tolerate a new Open after Close, but
// concurrent Reads on one instance are forbidden.
type BodyReader interface {
	Open() error
	Read(p []byte) (int, error)
	Close() error
}

// An AsyncBodyReader additionally supports completion-callback reads.
// The connection prefers ReadAsync when the response body implements it.
type AsyncBodyReader interface {
	BodyReader
	ReadAsync(p []byte, completion func(n int, err error))
}

// dataBodyReader serves an in-memory byte slice.
type dataBodyReader struct {
	data []byte
	off  int
}

func newDataBodyReader(data []byte) *dataBodyReader {
	return &dataBodyReader{data: data}
}

func (r *dataBodyReader) Open() error {
	r.off = 0
	return nil
}

func (r *dataBodyReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func (r *dataBodyReader) Close() error { return nil }

// fileBodyReader serves a byte range of a file.
type fileBodyReader struct {
	path      string
	offset    int64
	remaining int64
	file      *os.File
}

func newFileBodyReader(path string, offset, length int64) *fileBodyReader {
	return &fileBodyReader{path: path, offset: offset, remaining: length}
}

func (r *fileBodyReader) Open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	if r.offset > 0 {
		if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}
	r.file = f
	return nil
}

func (r *fileBodyReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.file.Read(p)
	r.remaining -= int64(n)
	if err == io.EOF && r.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (r *fileBodyReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// gzipBodyReader compresses an inner reader on the fly. The compressed
// length is unknown in advance, which forces chunked framing.
type gzipBodyReader struct {
	inner BodyReader
	zw    *gzip.Writer
	buf   bytes.Buffer
	chunk []byte
	eof   bool
}

func newGzipBodyReader(inner BodyReader) *gzipBodyReader {
	return &gzipBodyReader{inner: inner}
}

func (r *gzipBodyReader) Open() error {
	if err := r.inner.Open(); err != nil {
		return err
	}
	r.buf.Reset()
	r.eof = false
	r.zw = gzip.NewWriter(&r.buf)
	if r.chunk == nil {
		r.chunk = make([]byte, bodyChunkSize)
	}
	return nil
}

func (r *gzipBodyReader) Read(p []byte) (int, error) {
	for r.buf.Len() == 0 {
		if r.eof {
			return 0, io.EOF
		}
		n, err := r.inner.Read(r.chunk)
		if n > 0 {
			if _, werr := r.zw.Write(r.chunk[:n]); werr != nil {
				return 0, werr
			}
		}
		if err == io.EOF || (err == nil && n == 0) {
			if cerr := r.zw.Close(); cerr != nil {
				return 0, cerr
			}
			r.eof = true
		} else if err != nil {
			return 0, err
		}
	}
	return r.buf.Read(p)
}

func (r *gzipBodyReader) Close() error {
	return r.inner.Close()
}

// readerBodyReader serves from a caller-supplied io.ReadCloser. A
// non-negative limit caps the bytes read from it.
type readerBodyReader struct {
	rc        io.ReadCloser
	limit     int64
	remaining int64
	closed    bool
}

func (r *readerBodyReader) Open() error {
	if r.closed {
		return io.ErrClosedPipe
	}
	r.remaining = r.limit
	return nil
}

func (r *readerBodyReader) Read(p []byte) (int, error) {
	if r.limit >= 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > r.remaining {
			p = p[:r.remaining]
		}
	}
	n, err := r.rc.Read(p)
	if r.limit >= 0 {
		r.remaining -= int64(n)
		if err == io.EOF && r.remaining > 0 {
			err = io.ErrUnexpectedEOF
		}
		if err == io.EOF {
			err = nil
		}
	}
	return n, err
}

func (r *readerBodyReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}

// streamBodyReader adapts a caller-supplied pull block. The block
// returns (n, io.EOF) or (0, io.EOF) to finish.
type streamBodyReader struct {
	read func(p []byte) (int, error)
	open func() error
	done func() error
}

func (r *streamBodyReader) Open() error {
	if r.open != nil {
		return r.open()
	}
	return nil
}

func (r *streamBodyReader) Read(p []byte) (int, error) {
	return r.read(p)
}

func (r *streamBodyReader) Close() error {
	if r.done != nil {
		return r.done()
	}
	return nil
}

// asyncStreamBodyReader adapts a caller-supplied callback block.
type asyncStreamBodyReader struct {
	streamBodyReader
	readAsync func(p []byte, completion func(int, error))
}

func (r *asyncStreamBodyReader) ReadAsync(p []byte, completion func(int, error)) {
	r.readAsync(p, completion)
}

// readBody pulls one chunk, preferring the async capability.
func readBody(r BodyReader, p []byte) (int, error) {
	if ar, ok := r.(AsyncBodyReader); ok {
		type result struct {
			n   int
			err error
		}
		ch := make(chan result, 1)
		ar.ReadAsync(p, func(n int, err error) {
			ch <- result{n, err}
		})
		res := <-ch
		return res.n, res.err
	}
	return r.Read(p)
}
