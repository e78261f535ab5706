/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domzilla/webserver/hdr"
)

// startTestServer runs a server on an OS-assigned loopback port and
// stops it when the test finishes.
func startTestServer(t *testing.T, configure func(*Server), opts *Options) *Server {
	t.Helper()
	s := NewServer()
	if configure != nil {
		configure(s)
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.BindToLocalhost = true
	require.NoError(t, s.Start(opts))
	t.Cleanup(func() {
		if s.Running() {
			s.Stop()
		}
	})
	return s
}

// exchange writes one raw request and reads the whole response; the
// server closes after every exchange.
func exchange(t *testing.T, s *Server, raw string) (status string, header hdr.Header, body []byte) {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	status = strings.TrimRight(line, "\r\n")

	header, err = hdr.NewHeaderReader(br).ReadHeader()
	require.NoError(t, err)

	if strings.EqualFold(header.Get(hdr.TransferEncoding), "chunked") {
		body, err = io.ReadAll(newChunkedReader(br))
	} else {
		body, err = io.ReadAll(br)
	}
	require.NoError(t, err)
	return status, header, body
}

func TestServerServesSimpleGet(t *testing.T) {
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/hello", KindBase, SyncProcess(func(r *Request) *Response {
			return NewTextResponse("hello e2e")
		}))
	}, nil)

	status, header, body := exchange(t, s, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "Close", header.Get(hdr.Connection))
	assert.Equal(t, DefaultServerName, header.Get(hdr.ServerHeader))
	assert.NotEmpty(t, header.Get(hdr.Date))
	assert.Equal(t, "9", header.Get(hdr.ContentLength))
	assert.Equal(t, "hello e2e", string(body))
}

func TestServerAnswers501WithoutHandler(t *testing.T) {
	s := startTestServer(t, nil, nil)
	status, header, _ := exchange(t, s, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 501 Not Implemented", status)
	assert.Equal(t, "0", header.Get(hdr.ContentLength))
}

func TestServerAnswers400OnMalformedRequestLine(t *testing.T) {
	s := startTestServer(t, nil, nil)
	status, _, _ := exchange(t, s, "TOTAL GARBAGE\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 400 Bad Request", status)
}

func TestServerStreamsUnknownLengthAsChunked(t *testing.T) {
	chunks := []string{"alpha ", "beta ", "gamma"}
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/stream", KindBase, SyncProcess(func(r *Request) *Response {
			i := 0
			return NewStreamedResponse("text/plain", func(p []byte) (int, error) {
				if i == len(chunks) {
					return 0, io.EOF
				}
				n := copy(p, chunks[i])
				i++
				return n, nil
			})
		}))
	}, nil)

	status, header, body := exchange(t, s, "GET /stream HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "chunked", header.Get(hdr.TransferEncoding))
	assert.Empty(t, header.Get(hdr.ContentLength))
	assert.Equal(t, "alpha beta gamma", string(body))
}

func TestServerMapsHeadToGet(t *testing.T) {
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/doc", KindBase, SyncProcess(func(r *Request) *Response {
			return NewTextResponse("document body")
		}))
	}, nil)

	status, header, body := exchange(t, s, "HEAD /doc HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "13", header.Get(hdr.ContentLength))
	assert.Empty(t, body)
}

func TestServerReadsChunkedRequestBody(t *testing.T) {
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(POST, "/echo", KindData, SyncProcess(func(r *Request) *Response {
			return NewDataResponse(r.Data(), "application/octet-stream")
		}))
	}, nil)

	raw := "POST /echo HTTP/1.1\r\nHost: test\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"7\r\nchunked\r\n6\r\n body!\r\n0\r\n\r\n"
	status, _, body := exchange(t, s, raw)
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "chunked body!", string(body))
}

func TestServerEmitsCacheValidators(t *testing.T) {
	modified := time.Date(2024, time.June, 2, 10, 30, 0, 0, time.UTC)
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/cached", KindBase, SyncProcess(func(r *Request) *Response {
			resp := NewTextResponse("cacheable")
			resp.SetETag(`"v1"`)
			resp.SetLastModifiedDate(modified)
			resp.SetCacheControlMaxAge(120)
			return resp
		}))
	}, nil)

	status, header, _ := exchange(t, s, "GET /cached HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, `"v1"`, header.Get(hdr.Etag))
	assert.Equal(t, "max-age=120", header.Get(hdr.CacheControl))
	assert.Equal(t, hdr.FormatRFC1123(modified), header.Get(hdr.LastModified))

	// The same request with a matching validator collapses to 304.
	status, header, body := exchange(t, s,
		"GET /cached HTTP/1.1\r\nHost: test\r\nIf-None-Match: \"v1\"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 304 Not Modified", status)
	assert.Equal(t, `"v1"`, header.Get(hdr.Etag))
	assert.Empty(t, body)
}

func TestServerRequiresAuthenticationWhenConfigured(t *testing.T) {
	opts := DefaultOptions()
	opts.AuthenticationMethod = AuthBasic
	opts.AuthenticationRealm = "Test Zone"
	opts.AuthenticationAccounts = map[string]string{"alice": "pw"}
	s := startTestServer(t, func(s *Server) {
		s.AddDefaultHandler(GET, KindBase, SyncProcess(func(r *Request) *Response {
			return NewTextResponse("secret")
		}))
	}, opts)

	status, header, _ := exchange(t, s, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 401 Unauthorized", status)
	assert.Equal(t, `Basic realm="Test Zone"`, header.Get(hdr.WwwAuthenticate))

	status, _, body := exchange(t, s,
		"GET / HTTP/1.1\r\nHost: test\r\nAuthorization: "+basicHeader("alice", "pw")+"\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "secret", string(body))
}

func TestServerLifecycleCallbacks(t *testing.T) {
	events := make(chan string, 16)
	opts := DefaultOptions()
	opts.ConnectedStateCoalescingInterval = 50 * time.Millisecond

	s := NewServer()
	s.AddDefaultHandler(GET, KindBase, SyncProcess(func(r *Request) *Response {
		return NewStatusResponse(204)
	}))
	s.DidStart = func(*Server) { events <- "start" }
	s.DidStop = func(*Server) { events <- "stop" }
	s.DidConnect = func(*Server) { events <- "connect" }
	s.DidDisconnect = func(*Server) { events <- "disconnect" }

	opts.BindToLocalhost = true
	require.NoError(t, s.Start(opts))
	assert.Equal(t, "start", <-events)
	assert.Error(t, s.Start(opts))

	exchange(t, s, "GET / HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "connect", <-events)

	select {
	case got := <-events:
		assert.Equal(t, "disconnect", got)
	case <-time.After(2 * time.Second):
		t.Fatal("didDisconnect never fired")
	}

	require.NoError(t, s.Stop())
	assert.Equal(t, "stop", <-events)
	assert.Error(t, s.Stop())
}

// A panicking handler must not corrupt the active-connection count:
// the deferred connection cleanup is the only decrement, so the
// count settles back to zero and lifecycle callbacks keep firing.
func TestServerSurvivesPanickingHandler(t *testing.T) {
	disconnects := make(chan struct{}, 4)
	opts := DefaultOptions()
	opts.ConnectedStateCoalescingInterval = 50 * time.Millisecond

	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/boom", KindBase, SyncProcess(func(r *Request) *Response {
			panic("handler exploded")
		}))
		s.AddHandlerForMethodAndPath(GET, "/ok", KindBase, SyncProcess(func(r *Request) *Response {
			return NewTextResponse("still here")
		}))
		s.DidDisconnect = func(*Server) { disconnects <- struct{}{} }
	}, opts)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	require.NoError(t, err)
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Write([]byte("GET /boom HTTP/1.1\r\nHost: test\r\n\r\n"))
	require.NoError(t, err)
	// The connection closes without a response.
	io.Copy(io.Discard, conn)
	conn.Close()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.active == 0
	}, 2*time.Second, 10*time.Millisecond, "connection count did not settle")

	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("didDisconnect never fired after the panic")
	}

	status, _, body := exchange(t, s, "GET /ok HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "still here", string(body))

	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("didDisconnect never fired after the follow-up request")
	}
}

func TestServerURLWhileRunning(t *testing.T) {
	s := startTestServer(t, nil, nil)
	url := s.ServerURL()
	assert.True(t, strings.HasPrefix(url, "http://"), url)
	assert.Contains(t, url, fmt.Sprintf(":%d/", s.Port()))
	require.NoError(t, s.Stop())
	assert.Empty(t, s.ServerURL())
}
