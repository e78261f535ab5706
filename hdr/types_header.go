/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"strings"
	"sync"
	"time"
)

const (
	toLower = 'a' - 'A'

	// Header names the server reads or emits.
	Accept             = "Accept"
	AcceptEncoding     = "Accept-Encoding"
	AcceptRanges       = "Accept-Ranges"
	Authorization      = "Authorization"
	CacheControl       = "Cache-Control"
	Connection         = "Connection"
	ContentDisposition = "Content-Disposition"
	ContentEncoding    = "Content-Encoding"
	ContentLength      = "Content-Length"
	ContentRange       = "Content-Range"
	ContentType        = "Content-Type"
	Date               = "Date"
	Dav                = "Dav"
	Depth              = "Depth"
	Destination        = "Destination"
	Etag               = "Etag"
	Expect             = "Expect"
	Host               = "Host"
	IfHeader           = "If"
	IfModifiedSince    = "If-Modified-Since"
	IfNoneMatch        = "If-None-Match"
	LastModified       = "Last-Modified"
	Location           = "Location"
	LockToken          = "Lock-Token"
	Overwrite          = "Overwrite"
	Pragma             = "Pragma"
	RangeHeader        = "Range"
	ServerHeader       = "Server"
	Timeout            = "Timeout"
	Trailer            = "Trailer"
	TransferEncoding   = "Transfer-Encoding"
	UserAgent          = "User-Agent"
	WwwAuthenticate    = "Www-Authenticate"

	// TimeFormat is the time format to use when generating times in HTTP
	// headers. It is like time.RFC1123 but hard-codes GMT as the time
	// zone. The time being formatted must be in UTC for Format to
	// generate the correct format.
	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

	// ISO8601Format is the fixed-offset ISO 8601 form used in WebDAV
	// property documents. Only the +00:00 offset is emitted or accepted.
	ISO8601Format = "2006-01-02T15:04:05+00:00"
)

var (
	timeFormats = []string{
		TimeFormat,
		time.RFC850,
		time.ANSIC,
	}

	// HeaderNewlineToSpace keeps folded or injected newlines out of
	// serialized header values.
	HeaderNewlineToSpace = strings.NewReplacer("\n", " ", "\r", " ")

	headerSorterPool = sync.Pool{
		New: func() interface{} { return new(headerSorter) },
	}

	// commonHeader interns common header strings.
	commonHeader = make(map[string]string)

	// isTokenTable is a copy of net/http/lex.go's isTokenTable.
	// See https://httpwg.github.io/specs/rfc7230.html#rule.token.separators
	isTokenTable = [127]bool{
		'0': true, '1': true, '2': true, '3': true, '4': true, '5': true, '6': true, '7': true,
		'8': true, '9': true,

		'a': true, 'b': true, 'c': true, 'd': true, 'e': true, 'f': true, 'g': true, 'h': true,
		'i': true, 'j': true, 'k': true, 'l': true, 'm': true, 'n': true, 'o': true, 'p': true,
		'q': true, 'r': true, 's': true, 't': true, 'u': true, 'v': true, 'w': true, 'x': true,
		'y': true, 'z': true,

		'A': true, 'B': true, 'C': true, 'D': true, 'E': true, 'F': true, 'G': true, 'H': true,
		'I': true, 'J': true, 'K': true, 'L': true, 'M': true, 'N': true, 'O': true, 'P': true,
		'Q': true, 'R': true, 'S': true, 'T': true, 'U': true, 'V': true, 'W': true, 'X': true,
		'Y': true, 'Z': true,

		'!':  true,
		'#':  true,
		'$':  true,
		'%':  true,
		'&':  true,
		'\'': true,
		'*':  true,
		'+':  true,
		'-':  true,
		'.':  true,
		'^':  true,
		'_':  true,
		'`':  true,
		'|':  true,
		'~':  true,
	}
)

type (
	// A Header represents the key-value pairs of an HTTP header block.
	// Keys are stored in canonical form.
	Header map[string][]string

	keyValues struct {
		key    string
		values []string
	}

	// headerSorter sorts a slice of keyValues by key.
	headerSorter struct {
		kvs []keyValues
	}
)

func (s *headerSorter) Len() int           { return len(s.kvs) }
func (s *headerSorter) Swap(i, j int)      { s.kvs[i], s.kvs[j] = s.kvs[j], s.kvs[i] }
func (s *headerSorter) Less(i, j int) bool { return s.kvs[i].key < s.kvs[j].key }

func init() {
	for _, v := range []string{
		Accept,
		AcceptEncoding,
		AcceptRanges,
		Authorization,
		CacheControl,
		Connection,
		ContentDisposition,
		ContentEncoding,
		ContentLength,
		ContentRange,
		ContentType,
		Date,
		Dav,
		Depth,
		Destination,
		Etag,
		Expect,
		Host,
		IfHeader,
		IfModifiedSince,
		IfNoneMatch,
		LastModified,
		Location,
		LockToken,
		Overwrite,
		Pragma,
		RangeHeader,
		ServerHeader,
		Timeout,
		Trailer,
		TransferEncoding,
		UserAgent,
		WwwAuthenticate,
	} {
		commonHeader[v] = v
	}
}
