/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domzilla/webserver/hdr"
)

func basicHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func TestBasicAuthentication(t *testing.T) {
	a := newAuthenticator(AuthBasic, "Vault", map[string]string{"alice": "s3cret"})

	tests := []struct {
		name          string
		authorization string
		wantChallenge bool
	}{
		{name: "valid credentials", authorization: basicHeader("alice", "s3cret")},
		{name: "wrong password", authorization: basicHeader("alice", "nope"), wantChallenge: true},
		{name: "unknown user", authorization: basicHeader("bob", "s3cret"), wantChallenge: true},
		{name: "missing header", wantChallenge: true},
		{name: "not base64", authorization: "Basic !!!", wantChallenge: true},
		{name: "wrong scheme", authorization: "Bearer token", wantChallenge: true},
		{name: "case-insensitive scheme", authorization: "basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(hdr.Header)
			if tt.authorization != "" {
				h.Set(hdr.Authorization, tt.authorization)
			}
			r := testRequest(t, KindBase, GET, "/private", h)
			resp := a.preflight(r)
			if !tt.wantChallenge {
				assert.Nil(t, resp)
				return
			}
			require.NotNil(t, resp)
			assert.Equal(t, 401, resp.StatusCode())
			assert.Equal(t, `Basic realm="Vault"`, resp.Header(hdr.WwwAuthenticate))
		})
	}
}

func digestAuthorization(user, realm, password, method, uri, nonce string) string {
	ha1 := md5Hex(user + ":" + realm + ":" + password)
	ha2 := md5Hex(method + ":" + uri)
	response := md5Hex(ha1 + ":" + nonce + ":" + ha2)
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		user, realm, nonce, uri, response)
}

func TestDigestAuthentication(t *testing.T) {
	a := newAuthenticator(AuthDigest, "Vault", map[string]string{"alice": "s3cret"})

	// First round trips a challenge carrying the nonce and opaque.
	r := testRequest(t, KindBase, GET, "/private", nil)
	challenge := a.preflight(r)
	require.NotNil(t, challenge)
	assert.Equal(t, 401, challenge.StatusCode())
	params := parseAuthParams(challenge.Header(hdr.WwwAuthenticate)[len("Digest "):])
	nonce := params["nonce"]
	require.NotEmpty(t, nonce)
	assert.Equal(t, "Vault", params["realm"])
	assert.NotEmpty(t, params["opaque"])

	// The opaque value is stable across challenges.
	again := a.preflight(testRequest(t, KindBase, GET, "/private", nil))
	require.NotNil(t, again)
	assert.Equal(t, params["opaque"],
		parseAuthParams(again.Header(hdr.WwwAuthenticate)[len("Digest "):])["opaque"])

	// Second request answers the challenge.
	h := make(hdr.Header)
	h.Set(hdr.Authorization, digestAuthorization("alice", "Vault", "s3cret", GET, "/private", nonce))
	r = testRequest(t, KindBase, GET, "/private", h)
	assert.Nil(t, a.preflight(r))
}

func TestDigestRejectsBadCredentials(t *testing.T) {
	a := newAuthenticator(AuthDigest, "Vault", map[string]string{"alice": "s3cret"})
	nonce := a.currentNonce()

	tests := []struct {
		name          string
		authorization string
	}{
		{name: "wrong password", authorization: digestAuthorization("alice", "Vault", "nope", GET, "/x", nonce)},
		{name: "unknown user", authorization: digestAuthorization("bob", "Vault", "s3cret", GET, "/x", nonce)},
		{name: "wrong realm", authorization: digestAuthorization("alice", "Other", "s3cret", GET, "/x", nonce)},
		{name: "stale nonce", authorization: digestAuthorization("alice", "Vault", "s3cret", GET, "/x", "0123456789abcdef")},
		{name: "wrong method", authorization: digestAuthorization("alice", "Vault", "s3cret", PUT, "/x", nonce)},
		{name: "empty", authorization: "Digest "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(hdr.Header)
			h.Set(hdr.Authorization, tt.authorization)
			r := testRequest(t, KindBase, GET, "/x", h)
			resp := a.preflight(r)
			require.NotNil(t, resp)
			assert.Equal(t, 401, resp.StatusCode())
		})
	}
}

// A response computed against the previous nonce must still pass after
// one rotation.
func TestDigestAcceptsPreviousNonce(t *testing.T) {
	a := newAuthenticator(AuthDigest, "Vault", map[string]string{"alice": "s3cret"})
	old := a.currentNonce()
	a.currentNonce()

	h := make(hdr.Header)
	h.Set(hdr.Authorization, digestAuthorization("alice", "Vault", "s3cret", GET, "/x", old))
	r := testRequest(t, KindBase, GET, "/x", h)
	assert.Nil(t, a.preflight(r))
}

func TestAuthNoneAllowsEverything(t *testing.T) {
	a := newAuthenticator(AuthNone, "Vault", nil)
	r := testRequest(t, KindBase, GET, "/anything", nil)
	assert.Nil(t, a.preflight(r))
}

func TestParseAuthParams(t *testing.T) {
	params := parseAuthParams(`username="alice", realm="a, b", nonce=plain, uri="/x"`)
	assert.Equal(t, "alice", params["username"])
	assert.Equal(t, "a, b", params["realm"])
	assert.Equal(t, "plain", params["nonce"])
	assert.Equal(t, "/x", params["uri"])
}
