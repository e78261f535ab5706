/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package url

import (
	"errors"
	"strings"
)

// ErrBadTarget is returned for a request target that does not parse.
var ErrBadTarget = errors.New("url: malformed request target")

// A Target is the parsed form of an HTTP/1.1 request target.
// Path is percent-decoded; RawPath and RawQuery keep the wire bytes.
type Target struct {
	Scheme   string
	Host     string
	Path     string
	RawPath  string
	RawQuery string
}

// ParseTarget parses an origin-form ("/path?query") or absolute-form
// ("http://host/path?query") request target. The asterisk-form used by
// site-wide OPTIONS maps to "/".
func ParseTarget(target string) (*Target, error) {
	if target == "" {
		return nil, ErrBadTarget
	}
	t := &Target{}
	if target == "*" {
		t.Path, t.RawPath = "/", "/"
		return t, nil
	}
	rest := target
	if !strings.HasPrefix(rest, "/") {
		scheme, after, ok := strings.Cut(rest, "://")
		if !ok || scheme == "" {
			return nil, ErrBadTarget
		}
		t.Scheme = strings.ToLower(scheme)
		host, path, found := strings.Cut(after, "/")
		if host == "" {
			return nil, ErrBadTarget
		}
		t.Host = host
		if !found {
			rest = "/"
		} else {
			rest = "/" + path
		}
	}
	t.RawPath, t.RawQuery, _ = strings.Cut(rest, "?")
	decoded, err := Unescape(t.RawPath)
	if err != nil {
		return nil, ErrBadTarget
	}
	if !strings.HasPrefix(decoded, "/") {
		return nil, ErrBadTarget
	}
	t.Path = decoded
	return t, nil
}
