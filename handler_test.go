/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domzilla/webserver/hdr"
)

func noopProcess(r *Request, completion func(*Response)) {
	completion(NewStatusResponse(204))
}

func TestHandlerMatchingIsNewestFirst(t *testing.T) {
	s := NewServer()
	s.AddDefaultHandler(GET, KindBase, noopProcess)
	s.AddHandlerForMethodAndPath(GET, "/special", KindData, noopProcess)

	h, _ := s.matchHandler(GET, "/special", nil, make(hdr.Header))
	require.NotNil(t, h)
	assert.Equal(t, KindData, h.Kind)

	h, _ = s.matchHandler(GET, "/other", nil, make(hdr.Header))
	require.NotNil(t, h)
	assert.Equal(t, KindBase, h.Kind)

	h, _ = s.matchHandler(POST, "/special", nil, make(hdr.Header))
	assert.Nil(t, h)
}

func TestExactPathMatchingIsCaseInsensitive(t *testing.T) {
	s := NewServer()
	s.AddHandlerForMethodAndPath(GET, "/Files/Index.HTML", KindBase, noopProcess)

	h, _ := s.matchHandler(GET, "/files/index.html", nil, make(hdr.Header))
	assert.NotNil(t, h)
}

func TestRegexHandlerCaptures(t *testing.T) {
	s := NewServer()
	s.AddHandlerForMethodAndPathRegex(GET, `/users/(\d+)/posts/(\d+)`, KindBase, noopProcess)

	h, attrs := s.matchHandler(GET, "/users/42/posts/7", nil, make(hdr.Header))
	require.NotNil(t, h)
	assert.Equal(t, []string{"42", "7"}, attrs[AttrRegexCaptures])

	// Unanchored patterns must cover the whole path.
	h, _ = s.matchHandler(GET, "/users/42/posts/7/comments", nil, make(hdr.Header))
	assert.Nil(t, h)

	// Matching is case-insensitive.
	h, _ = s.matchHandler(GET, "/USERS/42/POSTS/7", nil, make(hdr.Header))
	assert.NotNil(t, h)
}

func TestAddHandlerPanicsWhileRunning(t *testing.T) {
	s := NewServer()
	s.running.Store(true)
	defer s.running.Store(false)
	assert.Panics(t, func() { s.AddDefaultHandler(GET, KindBase, noopProcess) })
	assert.Panics(t, func() { s.RemoveAllHandlers() })
}

func TestRemoveAllHandlers(t *testing.T) {
	s := NewServer()
	s.AddDefaultHandler(GET, KindBase, noopProcess)
	s.RemoveAllHandlers()
	h, _ := s.matchHandler(GET, "/", nil, make(hdr.Header))
	assert.Nil(t, h)
}

func TestSortNamesCollated(t *testing.T) {
	names := []string{"file10.txt", "File2.txt", "apple", "Banana", "file1.txt"}
	SortNamesCollated(names)
	assert.Equal(t, []string{"apple", "Banana", "file1.txt", "File2.txt", "file10.txt"}, names)
}

func TestDirectoryIndexListsEntriesInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b10.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b2.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	resp := directoryIndexResponse("/share/", dir)
	assert.Equal(t, 200, resp.StatusCode())
	page := string(drainBody(t, resp))

	assert.NotContains(t, page, ".hidden")
	assert.Contains(t, page, `href="/share/sub/"`)
	assert.Less(t, strings.Index(page, "b2.txt"), strings.Index(page, "b10.txt"))
}
