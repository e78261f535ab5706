/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webdav

import (
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/domzilla/webserver"
	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

// propSet is the subset of live properties a PROPFIND asked for.
type propSet struct {
	resourceType     bool
	creationDate     bool
	getLastModified  bool
	getContentLength bool
}

var allProps = propSet{
	resourceType:     true,
	creationDate:     true,
	getLastModified:  true,
	getContentLength: true,
}

// propfindRequest mirrors the DAV: propfind document. Only the four
// live properties the server serves are recognized; anything else is
// silently ignored.
type propfindRequest struct {
	XMLName xml.Name  `xml:"DAV: propfind"`
	Allprop *struct{} `xml:"DAV: allprop"`
	Prop    *struct {
		ResourceType     *struct{} `xml:"DAV: resourcetype"`
		CreationDate     *struct{} `xml:"DAV: creationdate"`
		GetLastModified  *struct{} `xml:"DAV: getlastmodified"`
		GetContentLength *struct{} `xml:"DAV: getcontentlength"`
	} `xml:"DAV: prop"`
}

func parsePropfindBody(body []byte) (propSet, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return allProps, nil
	}
	var req propfindRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return propSet{}, err
	}
	if req.Allprop != nil || req.Prop == nil {
		return allProps, nil
	}
	return propSet{
		resourceType:     req.Prop.ResourceType != nil,
		creationDate:     req.Prop.CreationDate != nil,
		getLastModified:  req.Prop.GetLastModified != nil,
		getContentLength: req.Prop.GetContentLength != nil,
	}, nil
}

// propfind enumerates the target and, at Depth 1, its children.
// Children come out in collation order so the same tree always yields
// the same document.
func (h *Handler) propfind(r *webserver.Request) *webserver.Response {
	depth := r.Header.Get(hdr.Depth)
	if depth != "0" && depth != "1" {
		return errorResponse(400, "unsupported Depth %q for PROPFIND", depth)
	}
	props, err := parsePropfindBody(r.Data())
	if err != nil {
		return causeResponse(400, err, "malformed PROPFIND body")
	}

	info, full, denied := h.statTarget(r.Path)
	if denied != nil {
		return denied
	}
	if info == nil {
		return errorResponse(404, "%q does not exist", r.Path)
	}
	rel := url.NormalizePath(r.Path)
	if info.IsDir() && !allowed(h.cfg.AllowDownload, rel) {
		return errorResponse(403, "listing %q is not allowed", rel)
	}

	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString("<D:multistatus xmlns:D=\"DAV:\">\n")
	writeResponseElement(&sb, rel, info, props)
	if depth == "1" && info.IsDir() {
		children, err := afero.ReadDir(h.fs, full)
		if err != nil {
			return causeResponse(500, err, "failed listing %q", rel)
		}
		byName := make(map[string]os.FileInfo, len(children))
		names := make([]string, 0, len(children))
		for _, child := range children {
			byName[child.Name()] = child
			names = append(names, child.Name())
		}
		webserver.SortNamesCollated(names)
		for _, name := range names {
			child := byName[name]
			if !h.itemAllowed("/"+name, child.IsDir()) {
				continue
			}
			writeResponseElement(&sb, path.Join(rel, name), child, props)
		}
	}
	sb.WriteString("</D:multistatus>\n")

	resp := webserver.NewDataResponse([]byte(sb.String()), "application/xml; charset=utf-8")
	resp.SetStatusCode(207)
	return resp
}

// writeResponseElement emits one <D:response>. Collection hrefs carry
// a trailing slash; every path is escaped for the XML attribute-safe
// href character set.
func writeResponseElement(sb *strings.Builder, rel string, info os.FileInfo, props propSet) {
	href := url.EscapeHref(rel)
	if info.IsDir() && !strings.HasSuffix(href, "/") {
		href += "/"
	}
	sb.WriteString("<D:response>\n")
	fmt.Fprintf(sb, "<D:href>%s</D:href>\n", href)
	sb.WriteString("<D:propstat>\n<D:prop>\n")
	if props.resourceType {
		if info.IsDir() {
			sb.WriteString("<D:resourcetype><D:collection/></D:resourcetype>\n")
		} else {
			sb.WriteString("<D:resourcetype/>\n")
		}
	}
	if props.creationDate {
		// The portable stat result has no birth time; the modification
		// time stands in for it.
		fmt.Fprintf(sb, "<D:creationdate>%s</D:creationdate>\n", hdr.FormatISO8601(info.ModTime()))
	}
	if props.getLastModified {
		fmt.Fprintf(sb, "<D:getlastmodified>%s</D:getlastmodified>\n", hdr.FormatRFC1123(info.ModTime()))
	}
	if props.getContentLength && !info.IsDir() {
		fmt.Fprintf(sb, "<D:getcontentlength>%d</D:getcontentlength>\n", info.Size())
	}
	sb.WriteString("</D:prop>\n<D:status>HTTP/1.1 200 OK</D:status>\n</D:propstat>\n</D:response>\n")
}
