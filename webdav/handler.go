/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package webdav serves a directory over WebDAV class 1, with the
// extra behaviors the macOS Finder expects. It registers its handlers
// on a webserver.Server and maps every method onto an afero
// filesystem, so tests can run against an in-memory tree.
package webdav

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/domzilla/webserver"
	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// Config describes the shared directory and its access policy. All
// predicate paths are normalized share-relative paths with a leading
// slash; a nil predicate allows everything.
type Config struct {
	// Fs is the backing filesystem, the OS filesystem when nil.
	Fs afero.Fs

	// Root is the directory within Fs that the share maps to.
	Root string

	// AllowedFileExtensions limits served and accepted files to the
	// given extensions (lower-case, no dot). Empty allows every
	// extension. Directories are never extension-filtered.
	AllowedFileExtensions []string

	// AllowHiddenItems exposes dot-prefixed items.
	AllowHiddenItems bool

	AllowDownload        func(path string) bool
	AllowUpload          func(path string) bool
	AllowMove            func(from, to string) bool
	AllowDelete          func(path string) bool
	AllowCreateDirectory func(path string) bool
}

// A Handler holds the resolved share configuration.
type Handler struct {
	fs         afero.Fs
	root       string
	extensions map[string]bool
	cfg        Config
}

// New returns a handler for the given share.
func New(cfg Config) *Handler {
	h := &Handler{fs: cfg.Fs, root: cfg.Root, cfg: cfg}
	if h.fs == nil {
		h.fs = afero.NewOsFs()
	}
	if len(cfg.AllowedFileExtensions) > 0 {
		h.extensions = make(map[string]bool, len(cfg.AllowedFileExtensions))
		for _, ext := range cfg.AllowedFileExtensions {
			h.extensions[strings.ToLower(ext)] = true
		}
	}
	return h
}

// Register attaches one handler per WebDAV method to the server.
// The server must not be running.
func (h *Handler) Register(s *webserver.Server) {
	register := func(method string, kind webserver.RequestKind, process func(*webserver.Request) *webserver.Response) {
		s.AddDefaultHandler(method, kind, webserver.SyncProcess(process))
	}
	register(webserver.OPTIONS, webserver.KindBase, h.options)
	register(webserver.GET, webserver.KindBase, h.get)
	register(webserver.PUT, webserver.KindFile, h.put)
	register(webserver.DELETE, webserver.KindBase, h.delete)
	register(webserver.MKCOL, webserver.KindData, h.mkcol)
	register(webserver.COPY, webserver.KindBase, func(r *webserver.Request) *webserver.Response { return h.copyMove(r, false) })
	register(webserver.MOVE, webserver.KindBase, func(r *webserver.Request) *webserver.Response { return h.copyMove(r, true) })
	register(webserver.PROPFIND, webserver.KindData, h.propfind)
	register(webserver.LOCK, webserver.KindData, h.lock)
	register(webserver.UNLOCK, webserver.KindBase, h.unlock)
}

func errorResponse(status int, format string, args ...interface{}) *webserver.Response {
	return webserver.NewErrorResponse(webserver.NewError(status, format, args...))
}

func causeResponse(status int, cause error, format string, args ...interface{}) *webserver.Response {
	return webserver.NewErrorResponse(webserver.NewErrorWithCause(status, cause, format, args...))
}

// resolve maps a request path to a normalized share-relative path and
// the filesystem path behind it. It fails with a 403 response when the
// path is excluded by the hidden-item or extension filter.
//
// The extension filter only binds files; callers pass isDirectory true
// when the target is known to be (or must become) a directory.
func (h *Handler) resolve(requestPath string, isDirectory bool) (rel, full string, denied *webserver.Response) {
	rel = url.NormalizePath(requestPath)
	if !h.itemAllowed(rel, isDirectory) {
		return "", "", errorResponse(403, "access to %q is not allowed", rel)
	}
	full = filepath.Join(h.root, filepath.FromSlash(rel))
	return rel, full, nil
}

func (h *Handler) itemAllowed(rel string, isDirectory bool) bool {
	leaf := path.Base(rel)
	if leaf == "/" || leaf == "." {
		return true
	}
	if !h.cfg.AllowHiddenItems && strings.HasPrefix(leaf, ".") {
		return false
	}
	if !isDirectory && h.extensions != nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(leaf), "."))
		if !h.extensions[ext] {
			return false
		}
	}
	return true
}

func allowed(predicate func(string) bool, p string) bool {
	return predicate == nil || predicate(p)
}

// options answers the capability probe. Finder variants negotiate
// locking and need to see class 2 even though locks are stateless.
func (h *Handler) options(r *webserver.Request) *webserver.Response {
	resp := webserver.NewStatusResponse(200)
	if isFinderAgent(r.Header.Get(hdr.UserAgent)) {
		resp.SetHeader(hdr.Dav, "1, 2")
	} else {
		resp.SetHeader(hdr.Dav, "1")
	}
	return resp
}

func isFinderAgent(userAgent string) bool {
	return strings.HasPrefix(userAgent, "WebDAVFS/") || strings.HasPrefix(userAgent, "WebDAVLib/")
}

// get serves file contents with range support. Directories answer an
// empty 200; enumeration happens through PROPFIND only.
func (h *Handler) get(r *webserver.Request) *webserver.Response {
	info, full, denied := h.statTarget(r.Path)
	if denied != nil {
		return denied
	}
	if info == nil {
		return errorResponse(404, "%q does not exist", r.Path)
	}
	if info.IsDir() {
		return webserver.NewStatusResponse(200)
	}
	rel := url.NormalizePath(r.Path)
	if !allowed(h.cfg.AllowDownload, rel) {
		return errorResponse(403, "downloading %q is not allowed", rel)
	}

	size := info.Size()
	offset, length, partial, ok := r.ByteRange().Resolve(size)
	if !ok {
		return errorResponse(416, "unsatisfiable byte range for %q (%d bytes)", rel, size)
	}
	f, err := h.fs.Open(full)
	if err != nil {
		return causeResponse(500, err, "failed opening %q", rel)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return causeResponse(500, err, "failed seeking in %q", rel)
		}
	}
	resp := webserver.NewReaderResponse(f, webserver.MimeTypeForPath(full), length)
	resp.SetLastModifiedDate(info.ModTime())
	resp.SetETag(webserver.FileETag(info))
	if partial {
		resp.SetStatusCode(206)
		resp.SetHeader(hdr.ContentRange, contentRange(offset, length, size))
	}
	return resp
}

func contentRange(offset, length, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, size)
}

// put replaces or creates a file from the spooled upload. The body
// already sits in a temp file; it is renamed into place when the
// filesystems line up and copied otherwise.
func (h *Handler) put(r *webserver.Request) *webserver.Response {
	if r.HasByteRange() {
		return errorResponse(400, "ranged PUT is not supported")
	}
	rel, full, denied := h.resolve(r.Path, false)
	if denied != nil {
		return denied
	}
	if !allowed(h.cfg.AllowUpload, rel) {
		return errorResponse(403, "uploading %q is not allowed", rel)
	}
	if denied := h.requireParent(rel, full); denied != nil {
		return denied
	}
	existing, err := h.statOrNil(full)
	if err != nil {
		return causeResponse(500, err, "failed inspecting %q", rel)
	}
	if existing != nil && existing.IsDir() {
		return errorResponse(405, "%q is a directory", rel)
	}
	if err := h.installUpload(r.TempPath(), full); err != nil {
		return causeResponse(500, err, "failed storing %q", rel)
	}
	if existing != nil {
		return webserver.NewStatusResponse(204)
	}
	return webserver.NewStatusResponse(201)
}

// installUpload moves the spooled temp file into place, atomically
// when the backing filesystem is the OS one on the same device.
func (h *Handler) installUpload(tempPath, full string) error {
	if _, isOS := h.fs.(*afero.OsFs); isOS && tempPath != "" {
		if err := os.Rename(tempPath, full); err == nil {
			return nil
		}
		// Cross-device rename fails; fall through to a staged copy.
	}
	src, err := os.Open(tempPath)
	if err != nil {
		return errors.Wrap(err, "opening upload spool")
	}
	defer src.Close()
	staging := full + ".webdav-part"
	dst, err := h.fs.Create(staging)
	if err != nil {
		return errors.Wrap(err, "creating staging file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		h.fs.Remove(staging)
		return errors.Wrap(err, "copying upload")
	}
	if err := dst.Close(); err != nil {
		h.fs.Remove(staging)
		return errors.Wrap(err, "flushing staging file")
	}
	if err := h.fs.Rename(staging, full); err != nil {
		h.fs.Remove(staging)
		return errors.Wrap(err, "publishing upload")
	}
	return nil
}

func (h *Handler) delete(r *webserver.Request) *webserver.Response {
	if depth := r.Header.Get(hdr.Depth); depth != "" && depth != "infinity" {
		return errorResponse(400, "unsupported Depth %q for DELETE", depth)
	}
	info, full, denied := h.statTarget(r.Path)
	if denied != nil {
		return denied
	}
	if info == nil {
		return errorResponse(404, "%q does not exist", r.Path)
	}
	rel := url.NormalizePath(r.Path)
	if !allowed(h.cfg.AllowDelete, rel) {
		return errorResponse(403, "deleting %q is not allowed", rel)
	}
	if err := h.fs.RemoveAll(full); err != nil {
		return causeResponse(500, err, "failed deleting %q", rel)
	}
	return webserver.NewStatusResponse(204)
}

func (h *Handler) mkcol(r *webserver.Request) *webserver.Response {
	if len(r.Data()) > 0 {
		return errorResponse(415, "MKCOL request bodies are not supported")
	}
	rel, full, denied := h.resolve(r.Path, true)
	if denied != nil {
		return denied
	}
	if !allowed(h.cfg.AllowCreateDirectory, rel) {
		return errorResponse(403, "creating directory %q is not allowed", rel)
	}
	if denied := h.requireParent(rel, full); denied != nil {
		return denied
	}
	if existing, err := h.statOrNil(full); err != nil {
		return causeResponse(500, err, "failed inspecting %q", rel)
	} else if existing != nil {
		return errorResponse(405, "%q already exists", rel)
	}
	if err := h.fs.Mkdir(full, 0o755); err != nil {
		return causeResponse(500, err, "failed creating directory %q", rel)
	}
	return webserver.NewStatusResponse(201)
}

// copyMove implements COPY and MOVE, which differ only in the
// filesystem operation and the Depth constraint.
func (h *Handler) copyMove(r *webserver.Request, move bool) *webserver.Response {
	if !move {
		if depth := r.Header.Get(hdr.Depth); depth != "" && depth != "infinity" {
			return errorResponse(400, "unsupported Depth %q for COPY", depth)
		}
	}
	srcInfo, srcFull, denied := h.statTarget(r.Path)
	if denied != nil {
		return denied
	}
	if srcInfo == nil {
		return errorResponse(404, "%q does not exist", r.Path)
	}
	srcRel := url.NormalizePath(r.Path)

	dstPath, err := destinationPath(r.Header.Get(hdr.Destination), r.Header.Get(hdr.Host))
	if err != nil {
		return causeResponse(400, err, "invalid Destination header")
	}
	dstRel, dstFull, denied := h.resolve(dstPath, srcInfo.IsDir())
	if denied != nil {
		return denied
	}
	if move {
		if h.cfg.AllowMove != nil && !h.cfg.AllowMove(srcRel, dstRel) {
			return errorResponse(403, "moving %q to %q is not allowed", srcRel, dstRel)
		}
	} else if !allowed(h.cfg.AllowUpload, dstRel) {
		return errorResponse(403, "copying to %q is not allowed", dstRel)
	}
	if denied := h.requireParent(dstRel, dstFull); denied != nil {
		return denied
	}

	overwrite := true
	switch r.Header.Get(hdr.Overwrite) {
	case "F", "f":
		overwrite = false
	}
	existing, err := h.statOrNil(dstFull)
	if err != nil {
		return causeResponse(500, err, "failed inspecting %q", dstRel)
	}
	if existing != nil {
		if !overwrite {
			return errorResponse(412, "%q already exists", dstRel)
		}
		if err := h.fs.RemoveAll(dstFull); err != nil {
			return causeResponse(500, err, "failed replacing %q", dstRel)
		}
	}

	if move {
		err = h.fs.Rename(srcFull, dstFull)
	} else {
		err = h.copyTree(srcFull, dstFull)
	}
	if err != nil {
		return causeResponse(500, err, "failed transferring %q to %q", srcRel, dstRel)
	}
	if existing != nil {
		return webserver.NewStatusResponse(204)
	}
	return webserver.NewStatusResponse(201)
}

func (h *Handler) copyTree(src, dst string) error {
	info, err := h.fs.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := h.fs.Mkdir(dst, info.Mode().Perm()); err != nil {
			return err
		}
		children, err := afero.ReadDir(h.fs, src)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := h.copyTree(filepath.Join(src, child.Name()), filepath.Join(dst, child.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	in, err := h.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := h.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// destinationPath strips the scheme and authority from a Destination
// header, using the request's own Host value as the delimiter, then
// percent-decodes what remains.
func destinationPath(destination, host string) (string, error) {
	if destination == "" {
		return "", errors.New("missing Destination header")
	}
	if host != "" {
		if idx := strings.Index(destination, host); idx >= 0 {
			destination = destination[idx+len(host):]
		}
	}
	if !strings.HasPrefix(destination, "/") {
		return "", errors.Errorf("destination %q is not an absolute path", destination)
	}
	decoded, err := url.Unescape(destination)
	if err != nil {
		return "", errors.Wrap(err, "percent-decoding destination")
	}
	return decoded, nil
}

// statTarget resolves and stats a request path; a nil info with nil
// response means the target does not exist.
func (h *Handler) statTarget(requestPath string) (os.FileInfo, string, *webserver.Response) {
	rel := url.NormalizePath(requestPath)
	full := filepath.Join(h.root, filepath.FromSlash(rel))
	info, err := h.statOrNil(full)
	if err != nil {
		return nil, "", causeResponse(500, err, "failed inspecting %q", rel)
	}
	if !h.itemAllowed(rel, info != nil && info.IsDir()) {
		return nil, "", errorResponse(403, "access to %q is not allowed", rel)
	}
	return info, full, nil
}

func (h *Handler) statOrNil(full string) (os.FileInfo, error) {
	info, err := h.fs.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

// requireParent answers the 409 the spec of PUT, MKCOL, COPY and MOVE
// demands when the destination's parent is missing.
func (h *Handler) requireParent(rel, full string) *webserver.Response {
	parent := filepath.Dir(full)
	info, err := h.statOrNil(parent)
	if err != nil {
		return causeResponse(500, err, "failed inspecting parent of %q", rel)
	}
	if info == nil || !info.IsDir() {
		return errorResponse(409, "parent of %q does not exist", rel)
	}
	return nil
}
