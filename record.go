/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/domzilla/webserver/hdr"
)

// A recorder captures the raw bytes of one connection. On close the
// exchange is written as NNN.request and NNN.response in the current
// directory, suitable for later replay.
type recorder struct {
	seq      int64
	request  bytes.Buffer
	response bytes.Buffer
}

func (s *Server) newRecorder() *recorder {
	return &recorder{seq: s.recSeq.Add(1)}
}

func (rec *recorder) flush(log Logger) {
	if err := os.WriteFile(fmt.Sprintf("%03d.request", rec.seq), rec.request.Bytes(), 0o644); err != nil {
		log.Error("failed recording request %03d: %v", rec.seq, err)
		return
	}
	if err := os.WriteFile(fmt.Sprintf("%03d.response", rec.seq), rec.response.Bytes(), 0o644); err != nil {
		log.Error("failed recording response %03d: %v", rec.seq, err)
		return
	}
	log.Verbose("recorded exchange %03d", rec.seq)
}

// volatileReplayHeaders differ legitimately between runs and are
// excluded from replay comparison.
var volatileReplayHeaders = map[string]bool{
	hdr.Date: true,
	hdr.Etag: true,
}

// CompareRecordedResponses reports whether two raw recorded responses
// are equivalent: same status line, same headers modulo the volatile
// set, same body bytes. The returned string describes the first
// difference, empty when equivalent.
func CompareRecordedResponses(expected, actual []byte) string {
	expStatus, expHeader, expBody, err := splitRecordedResponse(expected)
	if err != nil {
		return "expected response unparsable: " + err.Error()
	}
	actStatus, actHeader, actBody, err := splitRecordedResponse(actual)
	if err != nil {
		return "actual response unparsable: " + err.Error()
	}
	if expStatus != actStatus {
		return fmt.Sprintf("status line %q != %q", actStatus, expStatus)
	}
	for key, vv := range expHeader {
		if volatileReplayHeaders[key] {
			continue
		}
		if actHeader.Get(key) != vv[0] {
			return fmt.Sprintf("header %s: %q != %q", key, actHeader.Get(key), vv[0])
		}
	}
	for key := range actHeader {
		if !volatileReplayHeaders[key] && !expHeader.Has(key) {
			return fmt.Sprintf("unexpected header %s", key)
		}
	}
	if !bytes.Equal(expBody, actBody) {
		return fmt.Sprintf("body mismatch: %d bytes != %d bytes", len(actBody), len(expBody))
	}
	return ""
}

func splitRecordedResponse(raw []byte) (status string, header hdr.Header, body []byte, err error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	line, err := br.ReadString('\n')
	if err != nil {
		return "", nil, nil, err
	}
	status = strings.TrimRight(line, "\r\n")
	reader := hdr.NewHeaderReader(br)
	header, err = reader.ReadHeader()
	if err != nil {
		return "", nil, nil, err
	}
	if strings.EqualFold(header.Get(hdr.TransferEncoding), "chunked") {
		body, err = decodeRecordedChunks(br)
	} else {
		body, err = io.ReadAll(br)
	}
	if err != nil {
		return "", nil, nil, err
	}
	return status, header, body, nil
}

func decodeRecordedChunks(br *bufio.Reader) ([]byte, error) {
	cr := newChunkedReader(br)
	return io.ReadAll(cr)
}
