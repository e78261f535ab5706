/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

// Common HTTP methods, including the WebDAV class-1 set.
const (
	GET     = "GET"
	HEAD    = "HEAD"
	POST    = "POST"
	PUT     = "PUT"
	DELETE  = "DELETE"
	OPTIONS = "OPTIONS"
	PATCH   = "PATCH"

	PROPFIND  = "PROPFIND"
	PROPPATCH = "PROPPATCH"
	MKCOL     = "MKCOL"
	COPY      = "COPY"
	MOVE      = "MOVE"
	LOCK      = "LOCK"
	UNLOCK    = "UNLOCK"
)

// HTTP11 is the only protocol version the server speaks.
const HTTP11 = "HTTP/1.1"

var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	207: "Multi-Status",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	409: "Conflict",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	415: "Unsupported Media Type",
	416: "Requested Range Not Satisfiable",
	417: "Expectation Failed",
	422: "Unprocessable Entity",
	423: "Locked",
	424: "Failed Dependency",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
	507: "Insufficient Storage",
}

// StatusText returns a text for the HTTP status code. It returns the
// empty string if the code is unknown.
func StatusText(code int) string {
	return statusText[code]
}
