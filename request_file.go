/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"os"
)

// fileSink spools the body to a temporary file. The file exists by the
// time the handler runs; cleanup removes it unless the handler moved
// it away.
type fileSink struct {
	request *Request
	file    *os.File
}

func (s *fileSink) open() error {
	f, err := os.CreateTemp("", "webserver-upload-")
	if err != nil {
		return NewErrorWithCause(500, err, "failed creating spool file")
	}
	s.file = f
	s.request.tempPath = f.Name()
	return nil
}

func (s *fileSink) write(p []byte) (int, error) {
	n, err := s.file.Write(p)
	if err != nil {
		return n, NewErrorWithCause(500, err, "failed writing spool file")
	}
	return n, nil
}

func (s *fileSink) finish() error {
	if err := s.file.Close(); err != nil {
		return NewErrorWithCause(500, err, "failed closing spool file")
	}
	return nil
}

func (s *fileSink) abort() {
	if s.file != nil {
		s.file.Close()
		os.Remove(s.file.Name())
		s.request.tempPath = ""
	}
}

// cleanup releases per-request disk state after the response is done.
func (r *Request) cleanup() {
	if r.tempPath != "" {
		// Gone already if the handler claimed it with a rename.
		os.Remove(r.tempPath)
	}
	if r.parts != nil {
		r.parts.cleanup()
	}
}
