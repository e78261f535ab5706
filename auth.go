/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/domzilla/webserver/hdr"
)

// authenticator implements the default preflight: Basic or Digest
// access authentication over a static account table.
//
// For Digest the table stores HA1 = MD5(user:realm:password) so the
// plaintext passwords never sit in memory past construction. Nonces
// rotate; the previous nonce stays valid so a response computed just
// before rotation still passes.
type authenticator struct {
	method AuthMethod
	realm  string

	// Basic: user -> password. Digest: user -> HA1 hex.
	accounts map[string]string

	// opaque is fixed for the authenticator's lifetime; clients echo
	// it back and the qop-free scheme never inspects it.
	opaque string

	mu            sync.Mutex
	nonce         string
	previousNonce string
}

func newAuthenticator(method AuthMethod, realm string, accounts map[string]string) *authenticator {
	a := &authenticator{
		method:   method,
		realm:    realm,
		accounts: make(map[string]string, len(accounts)),
	}
	for user, password := range accounts {
		if method == AuthDigest {
			a.accounts[user] = md5Hex(user + ":" + realm + ":" + password)
		} else {
			a.accounts[user] = password
		}
	}
	if method == AuthDigest {
		a.nonce = newNonce()
		a.opaque = newNonce()
	}
	return a
}

// preflight returns nil when the request may proceed, or a 401
// challenge response.
func (a *authenticator) preflight(r *Request) *Response {
	switch a.method {
	case AuthNone:
		return nil
	case AuthBasic:
		if a.checkBasic(r.Header.Get(hdr.Authorization)) {
			return nil
		}
		return a.challenge(fmt.Sprintf("Basic realm=%q", a.realm))
	case AuthDigest:
		if a.checkDigest(r.Method, r.Header.Get(hdr.Authorization)) {
			return nil
		}
		return a.challenge(fmt.Sprintf("Digest realm=%q, nonce=%q, opaque=%q", a.realm, a.currentNonce(), a.opaque))
	}
	return nil
}

func (a *authenticator) challenge(value string) *Response {
	resp := NewErrorResponse(NewError(401, "authentication required"))
	resp.Headers().Set(hdr.WwwAuthenticate, value)
	return resp
}

func (a *authenticator) checkBasic(authorization string) bool {
	credentials, ok := authScheme(authorization, "Basic")
	if !ok {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return false
	}
	user, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	expected, known := a.accounts[user]
	return known && expected == password
}

func (a *authenticator) checkDigest(method, authorization string) bool {
	credentials, ok := authScheme(authorization, "Digest")
	if !ok {
		return false
	}
	params := parseAuthParams(credentials)
	user := params["username"]
	nonce := params["nonce"]
	uri := params["uri"]
	response := params["response"]
	if user == "" || nonce == "" || uri == "" || response == "" {
		return false
	}
	if params["realm"] != a.realm {
		return false
	}
	if !a.nonceValid(nonce) {
		return false
	}
	ha1, known := a.accounts[user]
	if !known {
		return false
	}
	ha2 := md5Hex(method + ":" + uri)
	expected := md5Hex(ha1 + ":" + nonce + ":" + ha2)
	return expected == response
}

// currentNonce rotates the nonce and returns the fresh value. The
// value it replaces remains acceptable until the next rotation.
func (a *authenticator) currentNonce() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.previousNonce = a.nonce
	a.nonce = newNonce()
	return a.nonce
}

func (a *authenticator) nonceValid(nonce string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nonce != "" && (nonce == a.nonce || nonce == a.previousNonce)
}

func newNonce() string {
	var raw [16]byte
	rand.Read(raw[:])
	return hex.EncodeToString(raw[:])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// authScheme extracts the credentials following the given scheme name,
// matched case-insensitively.
func authScheme(authorization, scheme string) (string, bool) {
	authorization = hdr.TrimString(authorization)
	if len(authorization) <= len(scheme) {
		return "", false
	}
	if !strings.EqualFold(authorization[:len(scheme)], scheme) || authorization[len(scheme)] != ' ' {
		return "", false
	}
	return hdr.TrimString(authorization[len(scheme)+1:]), true
}

// parseAuthParams splits `key="value", key=value` credential lists.
// Commas inside quoted values are honored; escapes are not, matching
// what the clients the server targets actually send.
func parseAuthParams(credentials string) map[string]string {
	params := make(map[string]string)
	for len(credentials) > 0 {
		eq := strings.IndexByte(credentials, '=')
		if eq < 0 {
			break
		}
		key := strings.ToLower(hdr.TrimString(credentials[:eq]))
		rest := credentials[eq+1:]
		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				break
			}
			value = rest[1 : 1+end]
			rest = rest[2+end:]
			if comma := strings.IndexByte(rest, ','); comma >= 0 {
				rest = rest[comma+1:]
			} else {
				rest = ""
			}
		} else {
			if comma := strings.IndexByte(rest, ','); comma >= 0 {
				value = hdr.TrimString(rest[:comma])
				rest = rest[comma+1:]
			} else {
				value = hdr.TrimString(rest)
				rest = ""
			}
		}
		if key != "" {
			params[key] = value
		}
		credentials = hdr.TrimString(rest)
	}
	return params
}
