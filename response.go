/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	jsonContentType = "application/json"
)

// NewDataResponse returns a response serving the given bytes.
func NewDataResponse(data []byte, contentType string) *Response {
	r := NewResponse()
	r.setBody(newDataBodyReader(data), contentType, int64(len(data)))
	return r
}

// NewTextResponse returns a UTF-8 plain-text response.
func NewTextResponse(text string) *Response {
	return NewDataResponse([]byte(text), "text/plain; charset=utf-8")
}

// NewHTMLResponse returns a UTF-8 HTML response.
func NewHTMLResponse(markup string) *Response {
	return NewDataResponse([]byte(markup), htmlContentType)
}

// NewJSONResponse serializes v with the standard JSON rules.
func NewJSONResponse(v interface{}) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewDataResponse(data, jsonContentType), nil
}

// NewTemplateResponse reads the file at path as UTF-8 and replaces
// every %key% with its value from variables. Substitution is a single
// left-to-right pass; replaced values are not rescanned.
func NewTemplateResponse(path string, variables map[string]string) (*Response, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	content := string(raw)
	for {
		start := strings.IndexByte(content, '%')
		if start < 0 {
			sb.WriteString(content)
			break
		}
		end := strings.IndexByte(content[start+1:], '%')
		if end < 0 {
			sb.WriteString(content)
			break
		}
		end += start + 1
		key := content[start+1 : end]
		if value, ok := variables[key]; ok {
			sb.WriteString(content[:start])
			sb.WriteString(value)
		} else {
			sb.WriteString(content[:end])
			// Reuse the closing '%' as a potential opener.
			content = content[end:]
			continue
		}
		content = content[end+1:]
	}
	return NewHTMLResponse(sb.String()), nil
}

// NewStreamedResponse returns a chunked response fed by a pull block.
// The block signals completion with (0, io.EOF).
func NewStreamedResponse(contentType string, read func(p []byte) (int, error)) *Response {
	r := NewResponse()
	r.setBody(&streamBodyReader{read: read}, contentType, ContentLengthUnknown)
	return r
}

// NewAsyncStreamedResponse returns a chunked response fed by a
// completion-callback block.
func NewAsyncStreamedResponse(contentType string, readAsync func(p []byte, completion func(int, error))) *Response {
	r := NewResponse()
	r.setBody(&asyncStreamBodyReader{readAsync: readAsync}, contentType, ContentLengthUnknown)
	return r
}

// NewReaderResponse serves contentLength bytes pulled from rc, which
// is closed when the body finishes. Pass ContentLengthUnknown for a
// chunked response of unknown size.
func NewReaderResponse(rc io.ReadCloser, contentType string, contentLength int64) *Response {
	r := NewResponse()
	r.setBody(&readerBodyReader{rc: rc, limit: contentLength}, contentType, contentLength)
	return r
}

// NewErrorResponse renders err as the standard minimal HTML error page
// with the title "HTTP Error N".
func NewErrorResponse(err *Error) *Response {
	title := fmt.Sprintf("HTTP Error %d", err.Status)
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	sb.WriteString(title)
	sb.WriteString("</title></head><body>\n<h1>")
	sb.WriteString(title)
	sb.WriteString(": ")
	sb.WriteString(html.EscapeString(err.Message))
	sb.WriteString("</h1>\n")
	if err.Underlying != nil {
		sb.WriteString("<h3>")
		sb.WriteString(html.EscapeString(err.Underlying.Error()))
		sb.WriteString("</h3>\n")
	}
	sb.WriteString("</body></html>\n")
	r := NewHTMLResponse(sb.String())
	r.statusCode = err.Status
	return r
}

// NewStatusResponse returns a bodiless response with the given code.
func NewStatusResponse(status int) *Response {
	r := NewResponse()
	r.SetStatusCode(status)
	return r
}
