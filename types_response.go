/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"time"

	"github.com/domzilla/webserver/hdr"
)

// ContentLengthUnknown marks a response body of unknown size; the
// connection switches to chunked transfer encoding for it.
const ContentLengthUnknown int64 = -1

// A Response carries the handler's answer back to the connection.
// It is mutable until the connection starts writing headers.
//
// A response has a body if and only if its content type is non-empty.
type Response struct {
	statusCode    int
	contentType   string
	contentLength int64
	cacheMaxAge   int
	lastModified  time.Time
	eTag          string
	gzipEnabled   bool
	headers       hdr.Header
	body          BodyReader
}

// NewResponse returns an empty response: status 200, no body.
func NewResponse() *Response {
	return &Response{
		statusCode:    200,
		contentLength: ContentLengthUnknown,
		headers:       make(hdr.Header),
	}
}

// StatusCode returns the response status code.
func (r *Response) StatusCode() int { return r.statusCode }

// SetStatusCode sets the status code. Codes outside 100..599 panic:
// they cannot be serialized into a status line.
func (r *Response) SetStatusCode(code int) {
	if code < 100 || code > 599 {
		panic("webserver: status code out of range")
	}
	r.statusCode = code
}

// ContentType returns the body content type, empty for no body.
func (r *Response) ContentType() string { return r.contentType }

// ContentLength returns the declared body length, or
// ContentLengthUnknown.
func (r *Response) ContentLength() int64 { return r.contentLength }

// HasBody reports whether the response carries a body.
func (r *Response) HasBody() bool { return r.contentType != "" }

// SetCacheControlMaxAge sets the max-age emitted in Cache-Control.
// Zero emits "no-cache".
func (r *Response) SetCacheControlMaxAge(seconds int) { r.cacheMaxAge = seconds }

// CacheControlMaxAge returns the configured max-age.
func (r *Response) CacheControlMaxAge() int { return r.cacheMaxAge }

// SetLastModifiedDate sets the Last-Modified validator.
func (r *Response) SetLastModifiedDate(t time.Time) { r.lastModified = t }

// LastModifiedDate returns the Last-Modified validator, zero if unset.
func (r *Response) LastModifiedDate() time.Time { return r.lastModified }

// SetETag sets the entity tag validator.
func (r *Response) SetETag(tag string) { r.eTag = tag }

// ETag returns the entity tag, empty if unset.
func (r *Response) ETag() string { return r.eTag }

// SetGzipContentEncodingEnabled lets the connection compress the body
// when the client accepts gzip. The compressed size is unknown, so the
// content length degrades to ContentLengthUnknown.
func (r *Response) SetGzipContentEncodingEnabled(enabled bool) {
	r.gzipEnabled = enabled
	if enabled {
		r.contentLength = ContentLengthUnknown
	}
}

// GzipContentEncodingEnabled reports whether gzip is allowed.
func (r *Response) GzipContentEncodingEnabled() bool { return r.gzipEnabled }

// SetHeader sets an additional response header.
func (r *Response) SetHeader(key, value string) { r.headers.Set(key, value) }

// Header returns the first additional header value for key.
func (r *Response) Header(key string) string { return r.headers.Get(key) }

// Headers exposes the additional header map.
func (r *Response) Headers() hdr.Header { return r.headers }

// Body returns the body reader, nil for bodiless responses.
func (r *Response) Body() BodyReader { return r.body }

// setBody wires a body and its metadata in one step.
func (r *Response) setBody(body BodyReader, contentType string, contentLength int64) {
	r.body = body
	r.contentType = contentType
	r.contentLength = contentLength
}
