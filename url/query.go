/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package url

import "strings"

// ParseQuery parses an application/x-www-form-urlencoded string.
// '+' decodes to space, then percent sequences decode as UTF-8.
// When a key repeats, the last value wins. Pairs that fail to decode
// are returned in skipped for the caller to log.
func ParseQuery(query string) (values map[string]string, skipped []string) {
	values = make(map[string]string)
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := unescapeForm(key)
		if err != nil {
			skipped = append(skipped, pair)
			continue
		}
		decodedValue, err := unescapeForm(value)
		if err != nil {
			skipped = append(skipped, pair)
			continue
		}
		values[decodedKey] = decodedValue
	}
	return values, skipped
}

func unescapeForm(s string) (string, error) {
	if strings.ContainsRune(s, '+') {
		s = strings.ReplaceAll(s, "+", " ")
	}
	return Unescape(s)
}
