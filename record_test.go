/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordedOK = "HTTP/1.1 200 OK\r\n" +
	"Connection: Close\r\n" +
	"Content-Length: 5\r\n" +
	"Content-Type: text/plain\r\n" +
	"Date: Mon, 03 Jun 2024 10:00:00 GMT\r\n" +
	"Etag: \"11:22:33\"\r\n" +
	"\r\nhello"

func TestCompareRecordedResponses(t *testing.T) {
	// Date and Etag may differ between runs.
	rerun := "HTTP/1.1 200 OK\r\n" +
		"Connection: Close\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: text/plain\r\n" +
		"Date: Tue, 04 Jun 2024 11:11:11 GMT\r\n" +
		"Etag: \"44:55:66\"\r\n" +
		"\r\nhello"
	assert.Empty(t, CompareRecordedResponses([]byte(recordedOK), []byte(rerun)))

	wrongStatus := "HTTP/1.1 404 Not Found\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nhello"
	assert.Contains(t, CompareRecordedResponses([]byte(recordedOK), []byte(wrongStatus)), "status line")

	wrongBody := "HTTP/1.1 200 OK\r\n" +
		"Connection: Close\r\nContent-Length: 5\r\nContent-Type: text/plain\r\n\r\nHELLO"
	assert.Contains(t, CompareRecordedResponses([]byte(recordedOK), []byte(wrongBody)), "body mismatch")

	extraHeader := recordedOK[:len(recordedOK)-len("\r\nhello")] +
		"X-Extra: 1\r\n\r\nhello"
	assert.Contains(t, CompareRecordedResponses([]byte(recordedOK), []byte(extraHeader)), "unexpected header")
}

func TestCompareRecordedResponsesDecodesChunkedBodies(t *testing.T) {
	chunked := "HTTP/1.1 200 OK\r\n" +
		"Connection: Close\r\n" +
		"Content-Type: text/plain\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n3\r\nhel\r\n2\r\nlo\r\n0\r\n\r\n"
	identical := "HTTP/1.1 200 OK\r\n" +
		"Connection: Close\r\n" +
		"Content-Type: text/plain\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n5\r\nhello\r\n0\r\n\r\n"
	assert.Empty(t, CompareRecordedResponses([]byte(chunked), []byte(identical)))
}

func TestRecorderCapturesExchanges(t *testing.T) {
	dir := t.TempDir()
	previous, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(previous)

	opts := DefaultOptions()
	opts.RecordingEnabled = true
	s := startTestServer(t, func(s *Server) {
		s.AddHandlerForMethodAndPath(GET, "/ping", KindBase, SyncProcess(func(r *Request) *Response {
			return NewTextResponse("pong")
		}))
	}, opts)

	_, _, body := exchange(t, s, "GET /ping HTTP/1.1\r\nHost: test\r\n\r\n")
	assert.Equal(t, "pong", string(body))

	request, err := os.ReadFile("001.request")
	require.NoError(t, err)
	assert.Contains(t, string(request), "GET /ping HTTP/1.1")

	response, err := os.ReadFile("001.response")
	require.NoError(t, err)
	assert.Empty(t, CompareRecordedResponses(response, response))
	assert.Contains(t, string(response), "pong")
}
