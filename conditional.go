/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"strings"
	"time"

	"github.com/domzilla/webserver/hdr"
)

// overrideWithRevalidation is the default response override. When a
// successful response carries a validator matching the request's
// conditional headers, the body is dropped: GET and HEAD answer 304,
// every other method answers 412. Validators and Cache-Control carry
// over so the client can refresh its cache entry.
func overrideWithRevalidation(r *Request, resp *Response) *Response {
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return resp
	}
	if !requestValidatorsMatch(r, resp) {
		return resp
	}

	status := 412
	if r.Method == GET || r.Method == HEAD {
		status = 304
	}
	out := NewStatusResponse(status)
	out.SetETag(resp.ETag())
	out.SetLastModifiedDate(resp.LastModifiedDate())
	out.SetCacheControlMaxAge(resp.CacheControlMaxAge())
	return out
}

// requestValidatorsMatch reports whether the client's cached validators
// still describe the response. The validators are independent: a match
// on either If-None-Match or If-Modified-Since triggers revalidation.
func requestValidatorsMatch(r *Request, resp *Response) bool {
	if inm := r.Header.Get(hdr.IfNoneMatch); inm != "" && etagListMatches(inm, resp.ETag()) {
		return true
	}
	if ims := r.Header.Get(hdr.IfModifiedSince); ims != "" {
		lm := resp.LastModifiedDate()
		if lm.IsZero() {
			return false
		}
		since, err := hdr.ParseRFC1123(ims)
		if err != nil {
			return false
		}
		// HTTP dates have second granularity; sub-second mtimes must
		// not defeat revalidation.
		return !lm.Truncate(time.Second).After(since)
	}
	return false
}

// etagListMatches compares the If-None-Match value against the
// response ETag, byte for byte per entry. "*" matches any ETag.
func etagListMatches(list, etag string) bool {
	if etag == "" {
		return false
	}
	for _, candidate := range strings.Split(list, ",") {
		candidate = hdr.TrimString(candidate)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
