/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

func TestReadRequestLine(t *testing.T) {
	tests := []struct {
		in      string
		method  string
		target  string
		proto   string
		wantErr bool
	}{
		{in: "GET /index.html HTTP/1.1\r\n", method: "GET", target: "/index.html", proto: "HTTP/1.1"},
		{in: "get / HTTP/1.1\r\n", method: "GET", target: "/", proto: "HTTP/1.1"},
		{in: "PROPFIND /dir HTTP/1.0\r\n", method: "PROPFIND", target: "/dir", proto: "HTTP/1.0"},
		{in: "\r\nGET / HTTP/1.1\r\n", method: "GET", target: "/", proto: "HTTP/1.1"},
		{in: "GET / HTTP/2.0\r\n", wantErr: true},
		{in: "GET /\r\n", wantErr: true},
		{in: "GE T / HTTP/1.1\r\n", wantErr: true},
		{in: "G@T / HTTP/1.1\r\n", wantErr: true},
		{in: " / HTTP/1.1\r\n", wantErr: true},
	}
	for _, tt := range tests {
		method, target, proto, err := readRequestLine(bufio.NewReader(strings.NewReader(tt.in)))
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.method, method)
		assert.Equal(t, tt.target, target)
		assert.Equal(t, tt.proto, proto)
	}
}

func TestParseBodyFraming(t *testing.T) {
	h := make(hdr.Header)
	cl, chunked, err := parseBodyFraming(h)
	require.NoError(t, err)
	assert.EqualValues(t, 0, cl)
	assert.False(t, chunked)

	h.Set(hdr.ContentLength, "42")
	cl, chunked, err = parseBodyFraming(h)
	require.NoError(t, err)
	assert.EqualValues(t, 42, cl)
	assert.False(t, chunked)

	h.Set(hdr.TransferEncoding, "chunked")
	cl, chunked, err = parseBodyFraming(h)
	require.NoError(t, err)
	assert.True(t, chunked)
	assert.Equal(t, ContentLengthUnknown, cl)

	h.Set(hdr.TransferEncoding, "deflate")
	_, _, err = parseBodyFraming(h)
	require.Error(t, err)
	assert.Equal(t, 501, asError(err).Status)

	h.Del(hdr.TransferEncoding)
	h.Set(hdr.ContentLength, "banana")
	_, _, err = parseBodyFraming(h)
	require.Error(t, err)
	assert.Equal(t, 400, asError(err).Status)
}

func TestChunkedReaderDecodes(t *testing.T) {
	wire := "4\r\nWiki\r\n5\r\npedia\r\nE;ext=1\r\n in\r\n\r\nchunks.\r\n0\r\nTrailer: x\r\n\r\n"
	cr := newChunkedReader(bufio.NewReader(strings.NewReader(wire)))
	body, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia in\r\n\r\nchunks.", string(body))
}

func TestChunkedReaderRejectsMalformedFraming(t *testing.T) {
	for _, wire := range []string{
		"Z\r\nabc\r\n0\r\n\r\n",
		"3\r\nabcX\n0\r\n\r\n",
		"5\r\nabc",
	} {
		cr := newChunkedReader(bufio.NewReader(strings.NewReader(wire)))
		_, err := io.ReadAll(cr)
		assert.Error(t, err, "wire %q", wire)
	}
}

func TestChunkedWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := &chunkedBodyWriter{bw: bw}
	_, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("chunked world"))
	require.NoError(t, err)
	require.NoError(t, w.finish())
	require.NoError(t, bw.Flush())

	cr := newChunkedReader(bufio.NewReader(&buf))
	body, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, "hello chunked world", string(body))
}

func TestIdentityWriterEnforcesDeclaredLength(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := &identityBodyWriter{bw: bw, remaining: 4}
	_, err := w.Write([]byte("1234"))
	require.NoError(t, err)
	_, err = w.Write([]byte("5"))
	assert.Error(t, err)
}

func testRequest(t *testing.T, kind RequestKind, method, rawTarget string, header hdr.Header) *Request {
	t.Helper()
	target, err := url.ParseTarget(rawTarget)
	require.NoError(t, err)
	if header == nil {
		header = make(hdr.Header)
	}
	return newRequest(kind, method, target, header, nil, nil)
}

func TestReadBodyIntoCountsIdentityBytes(t *testing.T) {
	h := make(hdr.Header)
	h.Set(hdr.ContentLength, "11")
	r := testRequest(t, KindData, POST, "/submit", h)
	r.ContentLength = 11

	br := bufio.NewReader(strings.NewReader("hello world"))
	require.NoError(t, readBodyInto(r, br))
	assert.EqualValues(t, 11, r.BytesReceived())
	assert.Equal(t, "hello world", string(r.Data()))
}

func TestReadBodyIntoRejectsTruncatedBody(t *testing.T) {
	h := make(hdr.Header)
	h.Set(hdr.ContentLength, "32")
	r := testRequest(t, KindData, POST, "/submit", h)
	r.ContentLength = 32

	br := bufio.NewReader(strings.NewReader("short"))
	err := readBodyInto(r, br)
	require.Error(t, err)
	assert.Equal(t, 400, asError(err).Status)
}

func TestReadBodyIntoChunked(t *testing.T) {
	h := make(hdr.Header)
	h.Set(hdr.TransferEncoding, "chunked")
	r := testRequest(t, KindData, POST, "/submit", h)
	r.chunked = true
	r.ContentLength = ContentLengthUnknown

	br := bufio.NewReader(strings.NewReader("6\r\nstream\r\n3\r\ned!\r\n0\r\n\r\n"))
	require.NoError(t, readBodyInto(r, br))
	assert.Equal(t, "streamed!", string(r.Data()))
	assert.EqualValues(t, 9, r.BytesReceived())
	// The provisional unknown length settles to the delivered total.
	assert.EqualValues(t, 9, r.ContentLength)
}

func TestReadBodyIntoEmptyBodyRunsSinkLifecycle(t *testing.T) {
	r := testRequest(t, KindData, POST, "/submit", nil)
	require.NoError(t, readBodyInto(r, bufio.NewReader(strings.NewReader(""))))
	assert.Empty(t, r.Data())
	assert.EqualValues(t, 0, r.BytesReceived())
}
