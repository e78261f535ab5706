/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bufio"
	"fmt"
	"strconv"
	"time"

	"github.com/domzilla/webserver/hdr"
)

// chunkedBodyWriter frames body bytes as HTTP/1.1 chunks.
type chunkedBodyWriter struct {
	bw      *bufio.Writer
	written int64
}

func (w *chunkedBodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := fmt.Fprintf(w.bw, "%x\r\n", len(p)); err != nil {
		return 0, err
	}
	n, err := w.bw.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, err
	}
	if _, err := w.bw.WriteString("\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// finish emits the terminating zero chunk. No trailers are produced.
func (w *chunkedBodyWriter) finish() error {
	_, err := w.bw.WriteString("0\r\n\r\n")
	return err
}

// identityBodyWriter passes body bytes through while enforcing the
// declared Content-Length.
type identityBodyWriter struct {
	bw        *bufio.Writer
	remaining int64
	written   int64
}

func (w *identityBodyWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > w.remaining {
		return 0, fmt.Errorf("webserver: body exceeds declared Content-Length by %d bytes",
			int64(len(p))-w.remaining)
	}
	n, err := w.bw.Write(p)
	w.written += int64(n)
	w.remaining -= int64(n)
	return n, err
}

// writeStatusLine emits "HTTP/1.1 <code> <reason>".
func writeStatusLine(bw *bufio.Writer, status int) error {
	reason := StatusText(status)
	if reason == "" {
		reason = "Status " + strconv.Itoa(status)
	}
	_, err := fmt.Fprintf(bw, "%s %d %s\r\n", HTTP11, status, reason)
	return err
}

// mandatoryHeaders are present on every response the server writes.
func mandatoryHeaders(serverName string, now time.Time) hdr.Header {
	h := make(hdr.Header, 3)
	h.Set(hdr.Connection, "Close")
	h.Set(hdr.ServerHeader, serverName)
	h.Set(hdr.Date, hdr.FormatRFC1123(now))
	return h
}
