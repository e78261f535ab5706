/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"strconv"
	"strings"
)

// A Range is a requested byte range. Offset -1 together with a
// positive Length selects the last Length bytes; NoRange selects the
// whole entity. Length -1 with a non-negative Offset runs to the end.
type Range struct {
	Offset int64
	Length int64
}

// NoRange selects the full entity.
var NoRange = Range{Offset: -1, Length: 0}

// IsSet reports whether the range selects anything but the full entity.
func (r Range) IsSet() bool {
	return !(r.Offset < 0 && r.Length == 0)
}

// Resolve clamps the range against an entity of the given size.
// partial is false when the resolved range covers the whole entity.
// ok is false when the range selects zero bytes, which maps to a 416.
func (r Range) Resolve(size int64) (offset, length int64, partial, ok bool) {
	switch {
	case !r.IsSet():
		offset, length = 0, size
	case r.Offset < 0:
		// Suffix range: last Length bytes.
		offset = size - r.Length
		if offset < 0 {
			offset = 0
		}
		length = size - offset
	default:
		offset = r.Offset
		if offset >= size {
			return 0, 0, false, false
		}
		length = size - offset
		if r.Length >= 0 && r.Length < length {
			length = r.Length
		}
	}
	if length <= 0 && size > 0 {
		return 0, 0, false, false
	}
	partial = offset != 0 || length != size
	return offset, length, partial, true
}

// parseRangeHeader parses a Range header value. Only a single
// bytes-range is supported; multi-range or malformed values are
// treated as no range at all.
func parseRangeHeader(value string) (Range, bool) {
	value = strings.TrimSpace(value)
	spec, ok := strings.CutPrefix(value, "bytes=")
	if !ok {
		return NoRange, false
	}
	if strings.ContainsRune(spec, ',') {
		return NoRange, false
	}
	first, last, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return NoRange, false
	}
	if first == "" {
		// Suffix form "-N".
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return NoRange, false
		}
		return Range{Offset: -1, Length: n}, true
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return NoRange, false
	}
	if last == "" {
		// Open form "N-".
		return Range{Offset: start, Length: -1}, true
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return NoRange, false
	}
	return Range{Offset: start, Length: end - start + 1}, true
}
