/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import "time"

// FormatRFC1123 formats t for an HTTP date header: RFC 1123 with the
// GMT zone spelled out.
func FormatRFC1123(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseRFC1123 parses a time header (such as the Date: header),
// trying each of the three formats allowed by HTTP/1.1:
// TimeFormat, time.RFC850, and time.ANSIC.
func ParseRFC1123(text string) (time.Time, error) {
	var t time.Time
	var err error
	for _, layout := range timeFormats {
		t, err = time.Parse(layout, text)
		if err == nil {
			return t, err
		}
	}
	return t, err
}

// FormatISO8601 formats t as YYYY-MM-DDTHH:MM:SS+00:00.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(ISO8601Format)
}

// ParseISO8601 parses the single fixed-offset ISO 8601 form emitted by
// FormatISO8601. Other offsets are rejected.
func ParseISO8601(text string) (time.Time, error) {
	return time.Parse(ISO8601Format, text)
}
