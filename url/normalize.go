/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package url

import "strings"

// NormalizePath canonicalizes a slash-separated path: "." segments are
// dropped, ".." pops the preceding segment, empty segments collapse, a
// leading "/" is preserved and a trailing "/" is dropped.
//
// NormalizePath is idempotent.
func NormalizePath(p string) string {
	rooted := strings.HasPrefix(p, "/")
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// collapse
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	joined := strings.Join(out, "/")
	if rooted {
		return "/" + joined
	}
	return joined
}
