/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webdav

import (
	"encoding/xml"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/domzilla/webserver"
	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// lockInfoRequest mirrors the DAV: lockinfo document sent by LOCK.
type lockInfoRequest struct {
	XMLName xml.Name `xml:"DAV: lockinfo"`
	Scope   struct {
		Exclusive *struct{} `xml:"DAV: exclusive"`
	} `xml:"DAV: lockscope"`
	Type struct {
		Write *struct{} `xml:"DAV: write"`
	} `xml:"DAV: locktype"`
	Owner struct {
		Inner string `xml:",innerxml"`
	} `xml:"DAV: owner"`
}

// lock fakes an exclusive write lock for the Finder, which refuses to
// mount read-write without one. No lock state is kept; the token is
// invented fresh and never checked again.
func (h *Handler) lock(r *webserver.Request) *webserver.Response {
	if !isFinderAgent(r.Header.Get(hdr.UserAgent)) {
		return errorResponse(405, "locking is only supported for Finder clients")
	}
	rel, _, denied := h.resolve(r.Path, false)
	if denied != nil {
		return denied
	}
	if depth := r.Header.Get(hdr.Depth); depth != "0" {
		return errorResponse(403, "only Depth 0 locks are supported")
	}
	var info lockInfoRequest
	if err := xml.Unmarshal(r.Data(), &info); err != nil {
		return causeResponse(400, err, "malformed LOCK body")
	}
	if info.Scope.Exclusive == nil || info.Type.Write == nil {
		return errorResponse(403, "only exclusive write locks are supported")
	}

	timeout := r.Header.Get(hdr.Timeout)
	if timeout == "" {
		timeout = "Second-600"
	}
	token := "urn:uuid:" + uuid.NewString()

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString("<D:prop xmlns:D=\"DAV:\">\n<D:lockdiscovery>\n<D:activelock>\n")
	sb.WriteString("<D:locktype><D:write/></D:locktype>\n")
	sb.WriteString("<D:lockscope><D:exclusive/></D:lockscope>\n")
	sb.WriteString("<D:depth>0</D:depth>\n")
	if owner := strings.TrimSpace(info.Owner.Inner); owner != "" {
		fmt.Fprintf(&sb, "<D:owner>%s</D:owner>\n", owner)
	}
	fmt.Fprintf(&sb, "<D:timeout>%s</D:timeout>\n", html.EscapeString(timeout))
	fmt.Fprintf(&sb, "<D:locktoken><D:href>%s</D:href></D:locktoken>\n", token)
	fmt.Fprintf(&sb, "<D:lockroot><D:href>%s</D:href></D:lockroot>\n", url.EscapeHref(rel))
	sb.WriteString("</D:activelock>\n</D:lockdiscovery>\n</D:prop>\n")

	resp := webserver.NewDataResponse([]byte(sb.String()), "application/xml; charset=utf-8")
	resp.SetHeader(hdr.LockToken, "<"+token+">")
	return resp
}

// unlock succeeds for any non-empty token, matching the stateless lock.
func (h *Handler) unlock(r *webserver.Request) *webserver.Response {
	if !isFinderAgent(r.Header.Get(hdr.UserAgent)) {
		return errorResponse(405, "locking is only supported for Finder clients")
	}
	if r.Header.Get(hdr.LockToken) == "" {
		return errorResponse(400, "missing Lock-Token header")
	}
	return webserver.NewStatusResponse(204)
}
