/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"bufio"
	"errors"
	"io"
)

var (
	// ErrHeaderTooLong is returned when a header block exceeds the read limit.
	ErrHeaderTooLong = errors.New("hdr: header block too long")

	// ErrMalformedHeader is returned for a field line that does not parse.
	ErrMalformedHeader = errors.New("hdr: malformed header line")
)

// A HeaderReader reads a CRLF-terminated header block from an
// underlying bufio.Reader.
type HeaderReader struct {
	R *bufio.Reader

	// Limit bounds the total number of header bytes consumed.
	// Zero means no limit.
	Limit int
}

// NewHeaderReader returns a new HeaderReader reading from r.
//
// To avoid denial of service, callers should set Limit (or have r read
// from an io.LimitedReader) to bound the size of the block.
func NewHeaderReader(r *bufio.Reader) *HeaderReader {
	return &HeaderReader{R: r}
}

// ReadHeader reads field lines up to and including the empty line that
// terminates the block. Repeated keys accumulate in order; callers that
// want last-value-wins use Get on the reversed slice or Set afterwards.
func (r *HeaderReader) ReadHeader() (Header, error) {
	h := make(Header)
	read := 0
	var lastKey string
	for {
		line, err := r.readLine(&read)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return h, nil
		}
		// Folded continuation lines (obs-fold) append to the previous value.
		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				return nil, ErrMalformedHeader
			}
			vv := h[lastKey]
			vv[len(vv)-1] += " " + string(trimBytes(line))
			continue
		}
		colon := -1
		for i := 0; i < len(line); i++ {
			if line[i] == ':' {
				colon = i
				break
			}
		}
		if colon <= 0 {
			return nil, ErrMalformedHeader
		}
		name := string(line[:colon])
		if !ValidHeaderFieldName(name) {
			return nil, ErrMalformedHeader
		}
		value := string(trimBytes(line[colon+1:]))
		key := CanonicalHeaderKey(name)
		h[key] = append(h[key], value)
		lastKey = key
	}
}

func (r *HeaderReader) readLine(read *int) ([]byte, error) {
	var line []byte
	for {
		l, more, err := r.R.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		*read += len(l) + 2
		if r.Limit > 0 && *read > r.Limit {
			return nil, ErrHeaderTooLong
		}
		line = append(line, l...)
		if !more {
			return line, nil
		}
	}
}

func trimBytes(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	n := len(b)
	for n > i && (b[n-1] == ' ' || b[n-1] == '\t') {
		n--
	}
	return b[i:n]
}
