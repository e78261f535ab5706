/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domzilla/webserver/hdr"
)

func drainBody(t *testing.T, r *Response) []byte {
	t.Helper()
	body := r.Body()
	require.NotNil(t, body)
	require.NoError(t, body.Open())
	defer body.Close()
	data, err := io.ReadAll(bodyAsReader{body})
	require.NoError(t, err)
	return data
}

type bodyAsReader struct{ b BodyReader }

func (r bodyAsReader) Read(p []byte) (int, error) {
	n, err := r.b.Read(p)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

func TestDataResponses(t *testing.T) {
	r := NewTextResponse("hello")
	assert.Equal(t, 200, r.StatusCode())
	assert.Equal(t, "text/plain; charset=utf-8", r.ContentType())
	assert.EqualValues(t, 5, r.ContentLength())
	assert.Equal(t, "hello", string(drainBody(t, r)))

	j, err := NewJSONResponse(map[string]int{"n": 7})
	require.NoError(t, err)
	assert.Equal(t, `{"n":7}`, string(drainBody(t, j)))
}

func TestTemplateSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>%title%</h1> 50%% done, %missing% %title%"), 0o644))

	r, err := NewTemplateResponse(path, map[string]string{"title": "Hi"})
	require.NoError(t, err)
	// Unknown keys stay literal; their closing delimiter can open the
	// next variable.
	assert.Equal(t, "<h1>Hi</h1> 50%% done, %missing% Hi", string(drainBody(t, r)))
}

func TestErrorResponsePage(t *testing.T) {
	r := NewErrorResponse(NewErrorWithCause(404, os.ErrNotExist, "no such page"))
	assert.Equal(t, 404, r.StatusCode())
	page := string(drainBody(t, r))
	assert.Contains(t, page, "HTTP Error 404")
	assert.Contains(t, page, "no such page")
	assert.Contains(t, page, os.ErrNotExist.Error())
}

func TestGzipBodyReaderRoundTrip(t *testing.T) {
	payload := strings.Repeat("compress me ", 2048)
	inner := newDataBodyReader([]byte(payload))
	zr := newGzipBodyReader(inner)
	require.NoError(t, zr.Open())
	defer zr.Close()

	compressed, err := io.ReadAll(bodyAsReader{zr})
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(payload))

	gz, err := gzip.NewReader(strings.NewReader(string(compressed)))
	require.NoError(t, err)
	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, payload, string(plain))
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileResponseServesWholeFile(t *testing.T) {
	path := writeTestFile(t, "doc.txt", "0123456789")
	r, err := NewFileResponse(path)
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode())
	assert.Equal(t, "text/plain", r.ContentType())
	assert.EqualValues(t, 10, r.ContentLength())
	assert.Equal(t, "0123456789", string(drainBody(t, r)))
	assert.False(t, r.LastModifiedDate().IsZero())
	// hex(inode):hex(mtime-sec):hex(mtime-nsec)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+:[0-9a-f]+:[0-9a-f]+$`), r.ETag())
}

func TestFileResponseServesRange(t *testing.T) {
	path := writeTestFile(t, "doc.txt", "0123456789")

	r, err := NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: Range{Offset: 2, Length: 5}})
	require.NoError(t, err)
	assert.Equal(t, 206, r.StatusCode())
	assert.Equal(t, "bytes 2-6/10", r.Header(hdr.ContentRange))
	assert.Equal(t, "23456", string(drainBody(t, r)))

	r, err = NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: Range{Offset: -1, Length: 3}})
	require.NoError(t, err)
	assert.Equal(t, 206, r.StatusCode())
	assert.Equal(t, "789", string(drainBody(t, r)))
}

func TestFileResponseRejectsUnsatisfiableRange(t *testing.T) {
	path := writeTestFile(t, "doc.txt", "0123456789")
	_, err := NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: Range{Offset: 100, Length: 5}})
	require.Error(t, err)
	assert.Equal(t, 416, asError(err).Status)
}

func TestFileResponseMissingFile(t *testing.T) {
	_, err := NewFileResponse(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.Equal(t, 404, asError(err).Status)
}

func TestFileResponseAttachmentDisposition(t *testing.T) {
	path := writeTestFile(t, "report.txt", "data")
	r, err := NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: NoRange, IsAttachment: true})
	require.NoError(t, err)
	disposition := r.Header(hdr.ContentDisposition)
	assert.Contains(t, disposition, `attachment; filename="report.txt"`)
}

func TestMimeTypeForPath(t *testing.T) {
	assert.Equal(t, "text/css", MimeTypeForPath("style.CSS"))
	assert.Equal(t, "text/plain", MimeTypeForPath("notes.txt"))
	assert.Equal(t, "application/octet-stream", MimeTypeForPath("blob.unknownext"))
	assert.Equal(t, "application/octet-stream", MimeTypeForPath("noextension"))
}

func TestStatusResponseHasNoBody(t *testing.T) {
	r := NewStatusResponse(204)
	assert.False(t, r.HasBody())
	assert.Nil(t, r.Body())
	assert.Panics(t, func() { NewStatusResponse(99) })
}
