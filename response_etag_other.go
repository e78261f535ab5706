/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

//go:build !linux

package webserver

import (
	"fmt"
	"os"
)

// fileETag derives the entity tag from the mtime with nanosecond
// precision. Platforms without a stable inode report it as zero.
func fileETag(info os.FileInfo) string {
	mtime := info.ModTime()
	return fmt.Sprintf("0:%x:%x", mtime.Unix(), mtime.Nanosecond())
}
