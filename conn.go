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
	"strconv"
	"sync"
	"time"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// A Connection drives one accepted socket through the request
// lifecycle: parse, match, read body, preflight, process, override,
// write, close. There is no keep-alive: one request per connection.
//
// All socket I/O happens on the connection's goroutine; only the
// handler's completion may arrive from elsewhere.
type Connection struct {
	server *Server
	rwc    net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer

	request  *Request
	response *Response
	handler  *Handler

	status       int
	bytesWritten int64
	started      time.Time

	rec *recorder
}

func newConnection(s *Server, rwc net.Conn) *Connection {
	c := &Connection{
		server:  s,
		rwc:     rwc,
		started: time.Now(),
	}
	var r io.Reader = rwc
	var w io.Writer = rwc
	if s.opts.RecordingEnabled {
		c.rec = s.newRecorder()
		r = io.TeeReader(r, &c.rec.request)
		w = io.MultiWriter(w, &c.rec.response)
	}
	c.br = bufio.NewReaderSize(r, 4<<10)
	c.bw = bufio.NewWriterSize(w, 4<<10)
	return c
}

func (c *Connection) serve() {
	defer c.close()

	if open := c.server.OnConnectionOpen; open != nil && !open(c) {
		return
	}

	method, target, _, err := readRequestLine(c.br)
	if err != nil {
		if err == io.EOF {
			// Peer connected and went away; nothing to answer.
			return
		}
		c.abort(nil, 400)
		return
	}

	reader := hdr.NewHeaderReader(c.br)
	reader.Limit = maxHeaderBytes
	header, err := reader.ReadHeader()
	if err != nil {
		c.abort(nil, 400)
		return
	}
	collapseRepeats(header)

	t, err := url.ParseTarget(target)
	if err != nil {
		c.abort(nil, 400)
		return
	}
	if rewrite := c.server.RewriteRequestURL; rewrite != nil {
		if rewritten := rewrite(method, t, header); rewritten != nil {
			t = rewritten
		}
	}

	matchMethod := method
	isHEAD := method == HEAD
	if isHEAD && c.server.opts.AutomaticallyMapHEADToGET {
		matchMethod = GET
	}

	query, _ := url.ParseQuery(t.RawQuery)
	h, attrs := c.server.matchHandler(matchMethod, t.Path, query, header)
	if h == nil {
		c.abort(nil, 501)
		return
	}

	c.handler = h
	r := newRequest(h.Kind, matchMethod, t, header, c.rwc.LocalAddr(), c.rwc.RemoteAddr())
	r.headParsedAsGET = isHEAD && matchMethod == GET
	for k, v := range attrs {
		r.SetAttribute(k, v)
	}
	c.request = r

	cl, chunked, ferr := parseBodyFraming(header)
	if ferr != nil {
		c.abort(r, asError(ferr).Status)
		return
	}
	r.chunked = chunked
	r.ContentLength = cl
	if chunked {
		r.ContentLength = ContentLengthUnknown
	}

	if expectsContinue(header) && r.HasBody() {
		if err := c.writeContinue(); err != nil {
			return
		}
	}

	if err := readBodyInto(r, c.br); err != nil {
		c.abort(r, asError(err).Status)
		return
	}

	resp := c.preflight(r)
	if resp == nil {
		resp = c.process(r)
	}
	if resp == nil {
		c.abort(r, 500)
		return
	}
	resp = c.override(r, resp)
	c.response = resp

	if err := c.writeResponse(r, resp, isHEAD); err != nil {
		c.server.logger().Warn("failed writing response to %s: %v", c.rwc.RemoteAddr(), err)
	}
}

// preflight runs before the handler; the default validates
// authentication and answers 401 itself.
func (c *Connection) preflight(r *Request) *Response {
	if pf := c.server.Preflight; pf != nil {
		return pf(c, r)
	}
	return c.server.auth.preflight(r)
}

// process invokes the handler and waits for its completion, which must
// be called exactly once and may arrive from any goroutine.
func (c *Connection) process(r *Request) *Response {
	entry := c.handler
	if entry == nil {
		return nil
	}
	done := make(chan *Response, 1)
	var once sync.Once
	completion := func(resp *Response) {
		once.Do(func() { done <- resp })
	}
	if hook := c.server.ProcessRequest; hook != nil {
		hook(c, r, entry.Process, completion)
	} else {
		entry.Process(r, completion)
	}
	return <-done
}

// override runs between the handler response and the wire; the
// default applies conditional-GET revalidation.
func (c *Connection) override(r *Request, resp *Response) *Response {
	if ov := c.server.OverrideResponse; ov != nil {
		return ov(c, r, resp)
	}
	return overrideWithRevalidation(r, resp)
}

// abort answers with a status-line-only response carrying the
// mandatory headers and no body. request is nil when header parsing
// failed.
func (c *Connection) abort(r *Request, status int) {
	c.request = r
	c.status = status
	if err := writeStatusLine(c.bw, status); err != nil {
		return
	}
	h := mandatoryHeaders(c.server.name(), time.Now())
	h.Set(hdr.ContentLength, "0")
	if err := h.Write(c.bw); err != nil {
		return
	}
	c.bw.WriteString("\r\n")
	c.bw.Flush()
}

func (c *Connection) writeContinue() error {
	if _, err := fmt.Fprintf(c.bw, "%s 100 Continue\r\n\r\n", HTTP11); err != nil {
		return err
	}
	return c.bw.Flush()
}

// writeResponse emits headers and streams the body. For HEAD the body
// reader still runs but its bytes are discarded.
func (c *Connection) writeResponse(r *Request, resp *Response, isHEAD bool) error {
	body := resp.Body()
	contentLength := resp.ContentLength()
	gzipped := false
	if resp.HasBody() && resp.GzipContentEncodingEnabled() && r.AcceptsGzip() {
		body = newGzipBodyReader(body)
		contentLength = ContentLengthUnknown
		gzipped = true
	}

	c.status = resp.StatusCode()
	if err := writeStatusLine(c.bw, resp.StatusCode()); err != nil {
		return err
	}

	h := mandatoryHeaders(c.server.name(), time.Now())
	if resp.CacheControlMaxAge() > 0 {
		h.Set(hdr.CacheControl, "max-age="+strconv.Itoa(resp.CacheControlMaxAge()))
	} else {
		h.Set(hdr.CacheControl, "no-cache")
	}
	if !resp.LastModifiedDate().IsZero() {
		h.Set(hdr.LastModified, hdr.FormatRFC1123(resp.LastModifiedDate()))
	}
	if resp.ETag() != "" {
		h.Set(hdr.Etag, resp.ETag())
	}
	chunkedOut := false
	if resp.HasBody() {
		h.Set(hdr.ContentType, resp.ContentType())
		if gzipped {
			h.Set(hdr.ContentEncoding, "gzip")
		}
		if contentLength >= 0 {
			h.Set(hdr.ContentLength, strconv.FormatInt(contentLength, 10))
		} else {
			h.Set(hdr.TransferEncoding, "chunked")
			chunkedOut = true
		}
	} else {
		h.Set(hdr.ContentLength, "0")
	}
	for k, vv := range resp.Headers() {
		h[k] = vv
	}
	if err := h.Write(c.bw); err != nil {
		return err
	}
	if _, err := c.bw.WriteString("\r\n"); err != nil {
		return err
	}

	if resp.HasBody() && body != nil {
		if err := c.writeBody(body, contentLength, chunkedOut, isHEAD); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

func (c *Connection) writeBody(body BodyReader, contentLength int64, chunked, discard bool) error {
	if err := body.Open(); err != nil {
		return err
	}
	defer body.Close()

	var dst io.Writer
	var chunker *chunkedBodyWriter
	switch {
	case discard:
		dst = io.Discard
	case chunked:
		chunker = &chunkedBodyWriter{bw: c.bw}
		dst = chunker
	default:
		dst = &identityBodyWriter{bw: c.bw, remaining: contentLength}
	}

	buf := make([]byte, bodyChunkSize)
	for {
		n, err := readBody(body, buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			c.bytesWritten += int64(written)
			if werr != nil {
				return werr
			}
		}
		if err == io.EOF || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return err
		}
	}
	if chunker != nil && !discard {
		return chunker.finish()
	}
	return nil
}

// close releases per-request state and runs the close hook. The
// default hook logs a one-line summary.
func (c *Connection) close() {
	c.bw.Flush()
	// Capture files must exist before the peer observes EOF.
	if c.rec != nil {
		c.rec.flush(c.server.logger())
	}
	c.rwc.Close()
	if c.request != nil {
		c.request.cleanup()
	}
	if hook := c.server.OnConnectionClose; hook != nil {
		hook(c)
	} else {
		method, path := "-", "-"
		if c.request != nil {
			method, path = c.request.Method, c.request.Path
		}
		c.server.logger().Verbose("%s | %s %s | %d | %d body bytes | %s",
			c.rwc.RemoteAddr(), method, path, c.status, c.bytesWritten, time.Since(c.started).Round(time.Millisecond))
	}
	c.server.connectionDidClose()
}

// Server returns the owning server.
func (c *Connection) Server() *Server { return c.server }

// Request returns the parsed request, nil before parsing completes.
func (c *Connection) Request() *Request { return c.request }

// Response returns the response being written, nil until processing
// finished.
func (c *Connection) Response() *Response { return c.response }

// collapseRepeats applies last-value-wins to repeated header keys.
func collapseRepeats(h hdr.Header) {
	for k, vv := range h {
		if len(vv) > 1 {
			h[k] = vv[len(vv)-1:]
		}
	}
}

func expectsContinue(h hdr.Header) bool {
	return hdr.TrimString(h.Get(hdr.Expect)) == "100-continue"
}
