/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"io"
	"mime"
	"mime/multipart"
	"os"
	"strings"
)

// A MultipartArgument is a textual multipart/form-data part kept in
// memory.
type MultipartArgument struct {
	ControlName string
	ContentType string
	Data        []byte
}

// String returns the argument bytes as a string.
func (a MultipartArgument) String() string { return string(a.Data) }

// A MultipartFile is a file part spooled to a temporary path.
type MultipartFile struct {
	ControlName string
	ContentType string
	FileName    string
	TempPath    string
}

type multipartResult struct {
	arguments []MultipartArgument
	files     []MultipartFile
}

func (m *multipartResult) cleanup() {
	for _, f := range m.files {
		if f.TempPath != "" {
			os.Remove(f.TempPath)
		}
	}
}

// MultipartArguments returns the in-memory parts of a
// KindMultipartForm request, duplicates preserved in order.
func (r *Request) MultipartArguments() []MultipartArgument {
	if r.parts == nil {
		return nil
	}
	return r.parts.arguments
}

// MultipartFiles returns the file parts of a KindMultipartForm
// request, duplicates preserved in order.
func (r *Request) MultipartFiles() []MultipartFile {
	if r.parts == nil {
		return nil
	}
	return r.parts.files
}

// FirstArgumentForControlName returns the first in-memory part with
// the given control name, or nil.
func (r *Request) FirstArgumentForControlName(name string) *MultipartArgument {
	for i := range r.MultipartArguments() {
		if r.parts.arguments[i].ControlName == name {
			return &r.parts.arguments[i]
		}
	}
	return nil
}

// FirstFileForControlName returns the first file part with the given
// control name, or nil.
func (r *Request) FirstFileForControlName(name string) *MultipartFile {
	for i := range r.MultipartFiles() {
		if r.parts.files[i].ControlName == name {
			return &r.parts.files[i]
		}
	}
	return nil
}

// multipartSink streams body bytes into a multipart parser running on
// its own goroutine, so file parts spool to disk without buffering the
// whole body.
type multipartSink struct {
	request *Request
	pw      *io.PipeWriter
	done    chan error
	result  *multipartResult
}

func newMultipartSink(r *Request) *multipartSink {
	return &multipartSink{request: r}
}

func (s *multipartSink) open() error {
	contentType := s.request.ContentType()
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return NewError(400, "invalid multipart content type %q", contentType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return NewError(400, "missing multipart boundary")
	}

	pr, pw := io.Pipe()
	s.pw = pw
	s.done = make(chan error, 1)
	s.result = &multipartResult{}
	go func() {
		err := s.parse(multipart.NewReader(pr, boundary))
		// Unblock the writer if parsing stopped early.
		pr.CloseWithError(err)
		s.done <- err
	}()
	return nil
}

func (s *multipartSink) parse(mr *multipart.Reader) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewErrorWithCause(400, err, "malformed multipart body")
		}
		if err := s.consumePart(part, part.FormName()); err != nil {
			part.Close()
			return err
		}
		part.Close()
	}
}

// consumePart stores one part, recursing into nested multipart/mixed
// containers (RFC 7578 file groups).
func (s *multipartSink) consumePart(part *multipart.Part, controlName string) error {
	partType := part.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(partType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return NewError(400, "missing nested multipart boundary")
		}
		nested := multipart.NewReader(part, boundary)
		for {
			sub, err := nested.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return NewErrorWithCause(400, err, "malformed nested multipart body")
			}
			if err := s.consumePart(sub, controlName); err != nil {
				sub.Close()
				return err
			}
			sub.Close()
		}
	}

	if fileName := part.FileName(); fileName != "" {
		f, err := os.CreateTemp("", "webserver-part-")
		if err != nil {
			return NewErrorWithCause(500, err, "failed creating part spool file")
		}
		if _, err := io.Copy(f, part); err != nil {
			f.Close()
			os.Remove(f.Name())
			return NewErrorWithCause(500, err, "failed spooling part %q", controlName)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return NewErrorWithCause(500, err, "failed closing part spool file")
		}
		s.result.files = append(s.result.files, MultipartFile{
			ControlName: controlName,
			ContentType: partType,
			FileName:    fileName,
			TempPath:    f.Name(),
		})
		return nil
	}

	data, err := io.ReadAll(part)
	if err != nil {
		return NewErrorWithCause(400, err, "failed reading part %q", controlName)
	}
	s.result.arguments = append(s.result.arguments, MultipartArgument{
		ControlName: controlName,
		ContentType: partType,
		Data:        data,
	})
	return nil
}

func (s *multipartSink) write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *multipartSink) finish() error {
	s.pw.Close()
	err := <-s.done
	if err != nil {
		s.result.cleanup()
		return err
	}
	s.request.parts = s.result
	return nil
}

func (s *multipartSink) abort() {
	if s.pw == nil {
		return
	}
	s.pw.CloseWithError(io.ErrUnexpectedEOF)
	<-s.done
	s.result.cleanup()
}
