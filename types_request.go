/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"net"
	"strings"
	"time"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// A RequestKind selects the body sink a handler wants for its
// requests.
type RequestKind int

const (
	// KindBase discards the body.
	KindBase RequestKind = iota

	// KindData buffers the body in memory.
	KindData

	// KindFile spools the body to a temporary file.
	KindFile

	// KindURLEncodedForm parses an application/x-www-form-urlencoded
	// body.
	KindURLEncodedForm

	// KindMultipartForm parses a multipart/form-data body.
	KindMultipartForm
)

// AttrRegexCaptures is the attribute key under which the regex handler
// stores its capture groups as a []string.
const AttrRegexCaptures = "RegexCaptures"

// Attributes annotate a request during matching and processing.
type Attributes map[string]interface{}

// bodySink receives request body bytes from the wire codec, one chunk
// at a time, in order.
type bodySink interface {
	open() error
	write(p []byte) (int, error)
	finish() error
	abort()
}

// A Request is one parsed HTTP request. It is immutable after
// construction except for its body buffer and attributes.
type Request struct {
	// Method is the uppercased request method.
	Method string

	// URL is the parsed request target, after any rewrite.
	URL *url.Target

	// Path is the percent-decoded URL path, always starting with "/".
	Path string

	// Query maps decoded query keys to values, last key wins.
	Query map[string]string

	// Header holds the request headers under canonical keys.
	Header hdr.Header

	// ContentLength is the declared body length. A chunked body
	// starts at ContentLengthUnknown and settles to the delivered
	// total once it completes.
	ContentLength int64

	kind      RequestKind
	chunked   bool
	usesGzip  bool
	byteRange Range
	hasRange  bool

	localAddr  net.Addr
	remoteAddr net.Addr

	attributes Attributes

	sink     bodySink
	received int64

	data       []byte
	tempPath   string
	formValues map[string]string
	parts      *multipartResult

	headParsedAsGET bool
	date            time.Time
}

// Kind returns the request's body sink kind.
func (r *Request) Kind() RequestKind { return r.kind }

// HasBody reports whether the request declared a body.
func (r *Request) HasBody() bool {
	return r.chunked || r.ContentLength > 0
}

// IsChunked reports whether the body used chunked transfer encoding.
func (r *Request) IsChunked() bool { return r.chunked }

// UsesGzip reports whether the body arrived gzip-encoded.
func (r *Request) UsesGzip() bool { return r.usesGzip }

// ContentType returns the declared body content type.
func (r *Request) ContentType() string { return r.Header.Get(hdr.ContentType) }

// HasByteRange reports whether a syntactically valid single byte range
// was requested.
func (r *Request) HasByteRange() bool { return r.hasRange }

// ByteRange returns the requested byte range, NoRange if absent.
func (r *Request) ByteRange() Range { return r.byteRange }

// LocalAddr returns the local socket address.
func (r *Request) LocalAddr() net.Addr { return r.localAddr }

// RemoteAddr returns the peer socket address.
func (r *Request) RemoteAddr() net.Addr { return r.remoteAddr }

// Attribute returns a handler annotation, nil when missing.
func (r *Request) Attribute(key string) interface{} { return r.attributes[key] }

// SetAttribute annotates the request.
func (r *Request) SetAttribute(key string, value interface{}) {
	if r.attributes == nil {
		r.attributes = make(Attributes)
	}
	r.attributes[key] = value
}

// BytesReceived returns the number of body bytes delivered to the
// sink. On successful completion of a sized body it equals
// ContentLength.
func (r *Request) BytesReceived() int64 { return r.received }

// Data returns the buffered body of a KindData request.
func (r *Request) Data() []byte { return r.data }

// TempPath returns the spool file of a KindFile request. The file
// exists while the handler runs and is removed afterwards unless the
// handler moves it away.
func (r *Request) TempPath() string { return r.tempPath }

// FormValue returns a decoded field of a KindURLEncodedForm request.
func (r *Request) FormValue(name string) string { return r.formValues[name] }

// FormValues returns all decoded fields of a KindURLEncodedForm
// request.
func (r *Request) FormValues() map[string]string { return r.formValues }

// MappedFromHEAD reports whether the request arrived as HEAD and was
// rewritten to GET for matching; the connection discards the body it
// produces.
func (r *Request) MappedFromHEAD() bool { return r.headParsedAsGET }

// Date returns when the request line was parsed.
func (r *Request) Date() time.Time { return r.date }

// AcceptsGzip reports whether the client accepts a gzip response body.
func (r *Request) AcceptsGzip() bool {
	for _, part := range strings.Split(r.Header.Get(hdr.AcceptEncoding), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, "gzip") {
			return true
		}
	}
	return false
}
