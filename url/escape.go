/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package url

import (
	"errors"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// ErrEscape is returned by Unescape for an invalid percent sequence.
var ErrEscape = errors.New("url: invalid percent escape")

// shouldEscape reports whether byte c must be percent-encoded by Escape.
//
// Alphanumerics and a conservative subset of the characters that are
// legal anywhere in a URL stay literal. Everything else is encoded,
// deliberately including the otherwise-legal ":@/?&=+" so that escaped
// strings survive both query contexts and XML attribute contexts.
func shouldEscape(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '!', '$', '\'', '(', ')', '*', ',', '-', '.', ';', '_', '~':
		return false
	}
	return true
}

// shouldEscapeHref reports whether byte c must be percent-encoded in a
// WebDAV href. Path separators stay literal; on top of the bytes that
// are illegal raw in a URL, "<&>?+" are encoded so the href can be
// dropped into an XML document unharmed.
func shouldEscapeHref(c byte) bool {
	if c <= ' ' || c >= 0x7f {
		return true
	}
	switch c {
	case '%', '"', '<', '>', '&', '?', '+', '{', '}', '|', '\\', '^', '`', '#', '[', ']':
		return true
	}
	return false
}

func escape(s string, pred func(byte) bool) string {
	hexCount := 0
	for i := 0; i < len(s); i++ {
		if pred(s[i]) {
			hexCount++
		}
	}
	if hexCount == 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 2*hexCount)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if pred(c) {
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&0xf])
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Escape percent-encodes s as UTF-8 for use in a URL component.
func Escape(s string) string {
	return escape(s, shouldEscape)
}

// EscapeHref percent-encodes a slash-separated resource path for use as
// a WebDAV <D:href> value.
func EscapeHref(path string) string {
	return escape(path, shouldEscapeHref)
}

// Unescape reverses percent-encoding. It does not treat '+' specially;
// query values go through ParseQuery instead.
func Unescape(s string) (string, error) {
	n := 0
	for i := 0; i < len(s); {
		if s[i] == '%' {
			if len(s) < i+3 || !ishex(s[i+1]) || !ishex(s[i+2]) {
				return "", ErrEscape
			}
			n++
			i += 3
		} else {
			i++
		}
	}
	if n == 0 {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			sb.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		} else {
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), nil
}

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
