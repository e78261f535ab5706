/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bytes"
	"net"
	"strings"
	"time"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// maxInMemoryBodySize bounds KindData request bodies. A declared
// length beyond it fails with 413 before any byte is read.
const maxInMemoryBodySize = 64 << 20 // 64 MiB

// newRequest builds a request of the given kind from parsed wire
// metadata and wires the matching body sink.
func newRequest(kind RequestKind, method string, target *url.Target, header hdr.Header, local, remote net.Addr) *Request {
	query, _ := url.ParseQuery(target.RawQuery)
	r := &Request{
		Method:        strings.ToUpper(method),
		URL:           target,
		Path:          target.Path,
		Query:         query,
		Header:        header,
		ContentLength: ContentLengthUnknown,
		kind:          kind,
		localAddr:     local,
		remoteAddr:    remote,
		attributes:    make(Attributes),
		date:          time.Now(),
	}
	if value := header.Get(hdr.RangeHeader); value != "" {
		r.byteRange, r.hasRange = parseRangeHeader(value)
	} else {
		r.byteRange = NoRange
	}
	if strings.EqualFold(header.Get(hdr.ContentEncoding), "gzip") {
		r.usesGzip = true
	}

	switch kind {
	case KindData:
		r.sink = &dataSink{request: r}
	case KindFile:
		r.sink = &fileSink{request: r}
	case KindURLEncodedForm:
		r.sink = &urlFormSink{request: r}
	case KindMultipartForm:
		r.sink = newMultipartSink(r)
	default:
		r.sink = discardSink{}
	}
	return r
}

// discardSink drops the body, for KindBase requests.
type discardSink struct{}

func (discardSink) open() error                { return nil }
func (discardSink) write(p []byte) (int, error) { return len(p), nil }
func (discardSink) finish() error              { return nil }
func (discardSink) abort()                     {}

// dataSink buffers the body in memory, bounded by
// maxInMemoryBodySize.
type dataSink struct {
	request *Request
	buf     bytes.Buffer
}

func (s *dataSink) open() error {
	if cl := s.request.ContentLength; cl > maxInMemoryBodySize {
		return NewError(413, "declared body of %d bytes exceeds the in-memory limit", cl)
	}
	s.buf.Reset()
	return nil
}

func (s *dataSink) write(p []byte) (int, error) {
	if int64(s.buf.Len())+int64(len(p)) > maxInMemoryBodySize {
		return 0, NewErrorWithCause(413, ErrBodyTooLarge, "request body exceeds the in-memory limit")
	}
	return s.buf.Write(p)
}

func (s *dataSink) finish() error {
	s.request.data = s.buf.Bytes()
	return nil
}

func (s *dataSink) abort() {}

// urlFormSink buffers the body and decodes it as
// application/x-www-form-urlencoded on completion.
type urlFormSink struct {
	request *Request
	data    dataSink
}

func (s *urlFormSink) open() error {
	s.data.request = s.request
	return s.data.open()
}

func (s *urlFormSink) write(p []byte) (int, error) { return s.data.write(p) }

func (s *urlFormSink) finish() error {
	values, skipped := url.ParseQuery(s.data.buf.String())
	for _, pair := range skipped {
		defaultLogger.Warn("skipping undecodable form pair %q", pair)
	}
	s.request.formValues = values
	return nil
}

func (s *urlFormSink) abort() {}
