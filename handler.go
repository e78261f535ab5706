/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// A MatchFunc decides whether a handler accepts a request. It must be
// pure. A nil return declines; a non-nil return accepts and its
// entries become request attributes.
type MatchFunc func(method, path string, query map[string]string, header hdr.Header) Attributes

// A ProcessFunc handles a fully-read request. It must call completion
// exactly once; completing with nil produces a 500.
type ProcessFunc func(r *Request, completion func(*Response))

// A Handler pairs a match predicate with a process function and the
// request kind the process expects.
type Handler struct {
	Match   MatchFunc
	Kind    RequestKind
	Process ProcessFunc
}

// SyncProcess wraps a plain request→response function as a
// ProcessFunc.
func SyncProcess(f func(*Request) *Response) ProcessFunc {
	return func(r *Request, completion func(*Response)) {
		completion(f(r))
	}
}

// AddHandler registers a handler. Handlers match in reverse
// registration order, so later registrations win.
// Mutating the handler list on a running server is a programmer error
// and panics.
func (s *Server) AddHandler(h Handler) {
	if s.running.Load() {
		panic("webserver: handlers cannot change while the server is running")
	}
	if h.Match == nil || h.Process == nil {
		panic("webserver: handler needs both Match and Process")
	}
	s.handlers = append(s.handlers, &h)
}

// RemoveAllHandlers empties the handler list. Panics while running.
func (s *Server) RemoveAllHandlers() {
	if s.running.Load() {
		panic("webserver: handlers cannot change while the server is running")
	}
	s.handlers = nil
}

// matchHandler returns the newest handler accepting the request, with
// the attributes its matcher produced.
func (s *Server) matchHandler(method, path string, query map[string]string, header hdr.Header) (*Handler, Attributes) {
	for i := len(s.handlers) - 1; i >= 0; i-- {
		if attrs := s.handlers[i].Match(method, path, query, header); attrs != nil {
			return s.handlers[i], attrs
		}
	}
	return nil, nil
}

// AddDefaultHandler registers a catch-all for the given method.
func (s *Server) AddDefaultHandler(method string, kind RequestKind, process ProcessFunc) {
	method = strings.ToUpper(method)
	s.AddHandler(Handler{
		Match: func(m, path string, query map[string]string, header hdr.Header) Attributes {
			if m != method {
				return nil
			}
			return Attributes{}
		},
		Kind:    kind,
		Process: process,
	})
}

// AddHandlerForMethodAndPath registers an exact-path handler. The path
// comparison is case-insensitive; the method is exact.
func (s *Server) AddHandlerForMethodAndPath(method, path string, kind RequestKind, process ProcessFunc) {
	method = strings.ToUpper(method)
	s.AddHandler(Handler{
		Match: func(m, p string, query map[string]string, header hdr.Header) Attributes {
			if m != method || !strings.EqualFold(p, path) {
				return nil
			}
			return Attributes{}
		},
		Kind:    kind,
		Process: process,
	})
}

// AddHandlerForMethodAndPathRegex registers a regex-path handler. The
// pattern compiles case-insensitively and must cover the whole path
// unless it already starts with "^". Capture groups land in the
// request attributes under AttrRegexCaptures as a []string.
// An invalid pattern is a programmer error and panics.
func (s *Server) AddHandlerForMethodAndPathRegex(method, pattern string, kind RequestKind, process ProcessFunc) {
	method = strings.ToUpper(method)
	anchored := pattern
	if !strings.HasPrefix(pattern, "^") {
		anchored = "^(?:" + pattern + ")$"
	}
	re := regexp.MustCompile("(?i)" + anchored)
	s.AddHandler(Handler{
		Match: func(m, p string, query map[string]string, header hdr.Header) Attributes {
			if m != method {
				return nil
			}
			groups := re.FindStringSubmatch(p)
			if groups == nil {
				return nil
			}
			return Attributes{AttrRegexCaptures: groups[1:]}
		},
		Kind:    kind,
		Process: process,
	})
}

// AddStaticDataHandler serves a byte blob at an exact GET path.
func (s *Server) AddStaticDataHandler(path string, data []byte, contentType string, maxAge int) {
	s.AddHandlerForMethodAndPath(GET, path, KindBase, SyncProcess(func(r *Request) *Response {
		resp := NewDataResponse(data, contentType)
		resp.SetCacheControlMaxAge(maxAge)
		return resp
	}))
}

// AddFileHandler serves one file at an exact GET path, honoring byte
// ranges.
func (s *Server) AddFileHandler(path, filePath string, isAttachment bool, maxAge int) {
	s.AddHandlerForMethodAndPath(GET, path, KindBase, SyncProcess(func(r *Request) *Response {
		resp, err := NewFileResponseWithOptions(filePath, FileResponseOptions{
			ByteRange:    r.ByteRange(),
			IsAttachment: isAttachment,
		})
		if err != nil {
			return NewErrorResponse(asError(err))
		}
		resp.SetCacheControlMaxAge(maxAge)
		return resp
	}))
}

// AddDirectoryHandler serves a directory subtree under basePath via
// GET. Directories render indexFilename when present, otherwise a
// generated HTML listing in collation order.
func (s *Server) AddDirectoryHandler(basePath, directoryPath, indexFilename string, maxAge int) {
	prefix := strings.TrimSuffix(basePath, "/")
	s.AddHandler(Handler{
		Match: func(m, p string, query map[string]string, header hdr.Header) Attributes {
			if m != GET || !strings.HasPrefix(p, prefix+"/") && p != prefix && p != prefix+"/" {
				return nil
			}
			return Attributes{}
		},
		Kind: KindBase,
		Process: SyncProcess(func(r *Request) *Response {
			rel := url.NormalizePath(strings.TrimPrefix(r.Path, prefix))
			target := filepath.Join(directoryPath, filepath.FromSlash(rel))
			info, err := os.Stat(target)
			if err != nil {
				return NewErrorResponse(NewErrorWithCause(404, err, "no such item"))
			}
			if info.IsDir() {
				if indexFilename != "" {
					index := filepath.Join(target, indexFilename)
					if _, err := os.Stat(index); err == nil {
						return fileOrError(index, r, maxAge)
					}
				}
				return directoryIndexResponse(r.Path, target)
			}
			return fileOrError(target, r, maxAge)
		}),
	})
}

func fileOrError(path string, r *Request, maxAge int) *Response {
	resp, err := NewFileResponseWithOptions(path, FileResponseOptions{ByteRange: r.ByteRange()})
	if err != nil {
		return NewErrorResponse(asError(err))
	}
	resp.SetCacheControlMaxAge(maxAge)
	return resp
}

// directoryCollator orders generated listings and PROPFIND children
// the way a locale-aware file browser would.
var directoryCollator = collate.New(language.Und, collate.Numeric, collate.IgnoreCase)

// SortNamesCollated orders names in place in deterministic,
// numeric-aware, case-insensitive collation order.
func SortNamesCollated(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return directoryCollator.CompareString(names[i], names[j]) < 0
	})
}

// SortedDirectoryNames returns the entry names of a directory in
// deterministic collation order.
func SortedDirectoryNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	SortNamesCollated(names)
	return names
}

func directoryIndexResponse(requestPath, dir string) *Response {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return NewErrorResponse(NewErrorWithCause(500, err, "failed listing directory"))
	}
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n<ul>\n",
		html.EscapeString(requestPath))
	base := strings.TrimSuffix(requestPath, "/")
	for _, name := range SortedDirectoryNames(entries) {
		if strings.HasPrefix(name, ".") {
			continue
		}
		display := name
		suffix := ""
		if e := byName[name]; e != nil && e.IsDir() {
			suffix = "/"
		}
		fmt.Fprintf(&sb, "<li><a href=\"%s\">%s%s</a></li>\n",
			url.EscapeHref(base+"/"+name)+suffix, html.EscapeString(display), suffix)
	}
	sb.WriteString("</ul>\n</body></html>\n")
	return NewHTMLResponse(sb.String())
}
