/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/domzilla/webserver/hdr"
)

// builtinMimeOverrides beat the system registry for extensions the
// registry tends to get wrong for browsers.
var builtinMimeOverrides = map[string]string{
	"css":  "text/css",
	"epub": "application/epub+zip",
	"js":   "text/javascript",
	"json": "application/json",
	"log":  "text/plain",
	"mjs":  "text/javascript",
	"txt":  "text/plain",
	"xml":  "text/xml",
}

// FileResponseOptions tune NewFileResponseWithOptions.
type FileResponseOptions struct {
	// ByteRange requests a partial body; NoRange serves the whole file.
	ByteRange Range

	// IsAttachment emits a Content-Disposition attachment header.
	IsAttachment bool

	// MimeTypeOverrides maps lowercase extensions (no dot) to types and
	// beats every other lookup tier.
	MimeTypeOverrides map[string]string
}

// NewFileResponse serves the whole regular file at path.
func NewFileResponse(path string) (*Response, error) {
	return NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: NoRange})
}

// NewFileResponseWithOptions serves a regular file, optionally as a
// byte range. The path is stat'ed without following symlinks; anything
// but a regular file fails.
//
// A non-full range sets status 206 and a Content-Range header. A range
// that clamps to zero bytes fails with a 416 error.
func NewFileResponseWithOptions(path string, opts FileResponseOptions) (*Response, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, NewErrorWithCause(404, err, "file not found: %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, NewError(404, "not a regular file: %s", path)
	}
	size := info.Size()

	offset, length, partial, ok := opts.ByteRange.Resolve(size)
	if !ok {
		return nil, NewError(416, "unsatisfiable byte range [%d:%d] for %q (%d bytes)",
			opts.ByteRange.Offset, opts.ByteRange.Length, path, size)
	}

	r := NewResponse()
	r.setBody(newFileBodyReader(path, offset, length), mimeTypeForFile(path, opts.MimeTypeOverrides), length)
	r.SetLastModifiedDate(info.ModTime())
	r.SetETag(fileETag(info))
	if partial {
		r.SetStatusCode(206)
		r.SetHeader(hdr.ContentRange, fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, size))
	}
	if opts.IsAttachment {
		r.SetHeader(hdr.ContentDisposition, attachmentDisposition(filepath.Base(path)))
	}
	return r, nil
}

// FileETag derives the entity tag for a stat result, hex inode and
// modification time. Platforms without inodes use zero there.
func FileETag(info os.FileInfo) string {
	return fileETag(info)
}

// MimeTypeForPath resolves a content type from the path's extension
// alone, without touching the file. The fallback is
// application/octet-stream.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext != "" {
		if t, ok := builtinMimeOverrides[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

// mimeTypeForFile resolves a content type for path through four tiers:
// caller overrides, built-in overrides, the system MIME registry, and
// a content sniff. The fallback is application/octet-stream.
func mimeTypeForFile(path string, overrides map[string]string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext != "" {
		if t, ok := overrides[ext]; ok {
			return t
		}
		if t, ok := builtinMimeOverrides[ext]; ok {
			return t
		}
		if t := mime.TypeByExtension("." + ext); t != "" {
			return t
		}
	}
	if detected, err := mimetype.DetectFile(path); err == nil {
		return detected.String()
	}
	return "application/octet-stream"
}

func attachmentDisposition(filename string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, escaped, escapeRFC5987(filename))
}

func escapeRFC5987(s string) string {
	const attrChar = "!#$&+-.^_`|~"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || strings.IndexByte(attrChar, c) >= 0 {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}
