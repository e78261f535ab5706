/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/domzilla/webserver/hdr"
)

const (
	// maxRequestLineBytes bounds the request line.
	maxRequestLineBytes = 8 << 10

	// maxHeaderBytes bounds the whole header block.
	maxHeaderBytes = 64 << 10

	// maxChunkLineLength bounds a chunk-size line.
	maxChunkLineLength = 4 << 10
)

var (
	errMalformedRequestLine = errors.New("webserver: malformed request line")

	// ErrLineTooLong is returned for an oversized chunk-size line.
	ErrLineTooLong = errors.New("webserver: chunk line too long")

	errMalformedChunk = errors.New("webserver: malformed chunked encoding")
)

// readRequestLine parses "METHOD SP request-target SP HTTP-version".
// Leading empty lines are tolerated per RFC 7230 §3.5.
func readRequestLine(br *bufio.Reader) (method, target, proto string, err error) {
	var line string
	for i := 0; i < 2; i++ {
		line, err = readWireLine(br, maxRequestLineBytes)
		if err != nil {
			return "", "", "", err
		}
		if line != "" {
			break
		}
	}
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", "", errMalformedRequestLine
	}
	method, target, proto = parts[0], parts[1], parts[2]
	if method == "" || target == "" {
		return "", "", "", errMalformedRequestLine
	}
	for i := 0; i < len(method); i++ {
		if !hdr.IsTokenByte(method[i]) {
			return "", "", "", errMalformedRequestLine
		}
	}
	if proto != HTTP11 && proto != "HTTP/1.0" {
		return "", "", "", errMalformedRequestLine
	}
	return strings.ToUpper(method), target, proto, nil
}

func readWireLine(br *bufio.Reader, limit int) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	if len(line) > limit {
		return "", ErrLineTooLong
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseBodyFraming derives the body length and encoding from the
// header block. Transfer-Encoding: chunked wins over Content-Length.
func parseBodyFraming(header hdr.Header) (contentLength int64, chunked bool, err error) {
	if te := header.Get(hdr.TransferEncoding); te != "" {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return 0, false, NewError(501, "unsupported transfer encoding %q", te)
		}
		return ContentLengthUnknown, true, nil
	}
	cl := header.Get(hdr.ContentLength)
	if cl == "" {
		return 0, false, nil
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if perr != nil || n < 0 {
		return 0, false, NewError(400, "invalid Content-Length %q", cl)
	}
	return n, false, nil
}

// chunkedReader decodes Transfer-Encoding: chunked request bodies.
// Chunk extensions are tolerated and ignored; the trailer block is
// read and discarded.
type chunkedReader struct {
	br        *bufio.Reader
	remaining int64
	sawEOF    bool
}

func newChunkedReader(br *bufio.Reader) *chunkedReader {
	return &chunkedReader{br: br}
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.sawEOF {
		return 0, io.EOF
	}
	if r.remaining == 0 {
		size, err := r.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			if err := r.discardTrailer(); err != nil {
				return 0, err
			}
			r.sawEOF = true
			return 0, io.EOF
		}
		r.remaining = size
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := io.ReadFull(r.br, p)
	r.remaining -= int64(n)
	if err != nil {
		return n, io.ErrUnexpectedEOF
	}
	if r.remaining == 0 {
		if err := r.expectCRLF(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (r *chunkedReader) readChunkSize() (int64, error) {
	line, err := readChunkLine(r.br)
	if err != nil {
		return 0, err
	}
	// Strip any chunk-extension.
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, errMalformedChunk
	}
	size, err := strconv.ParseInt(line, 16, 64)
	if err != nil || size < 0 {
		return 0, errMalformedChunk
	}
	return size, nil
}

func (r *chunkedReader) expectCRLF() error {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return io.ErrUnexpectedEOF
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return errMalformedChunk
	}
	return nil
}

func (r *chunkedReader) discardTrailer() error {
	for {
		line, err := readChunkLine(r.br)
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}

// readChunkLine reads one CRLF-terminated line of the chunked framing.
func readChunkLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	if len(line) > maxChunkLineLength {
		return "", ErrLineTooLong
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readBodyInto streams the request body from the wire into the
// request's sink, honoring framing and an optional gzip layer.
func readBodyInto(r *Request, br *bufio.Reader) error {
	var src io.Reader
	switch {
	case r.chunked:
		src = newChunkedReader(br)
	case r.ContentLength > 0:
		src = io.LimitReader(br, r.ContentLength)
	default:
		// No body: still run the sink lifecycle so handlers see
		// consistent state.
		if err := r.sink.open(); err != nil {
			r.sink.abort()
			return err
		}
		return r.sink.finish()
	}

	if err := r.sink.open(); err != nil {
		r.sink.abort()
		return err
	}

	if r.usesGzip {
		zr, zerr := gzip.NewReader(src)
		if zerr != nil {
			r.sink.abort()
			return NewErrorWithCause(400, zerr, "invalid gzip body")
		}
		src = zr
	}

	n, err := io.CopyBuffer(sinkWriter{r}, src, make([]byte, bodyChunkSize))
	r.received = n
	if err != nil {
		r.sink.abort()
		if _, ok := err.(*Error); ok {
			return err
		}
		return NewErrorWithCause(400, err, "failed reading request body")
	}
	if !r.chunked && !r.usesGzip && r.received != r.ContentLength {
		r.sink.abort()
		return NewError(400, "request body truncated: %d of %d bytes", r.received, r.ContentLength)
	}
	if r.chunked {
		// The length is known once the terminal chunk arrives.
		r.ContentLength = r.received
	}
	return r.sink.finish()
}

// sinkWriter adapts a request's sink to io.Writer for io.Copy.
type sinkWriter struct{ r *Request }

func (w sinkWriter) Write(p []byte) (int, error) {
	return w.r.sink.write(p)
}
