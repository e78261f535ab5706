/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/domzilla/webserver/hdr"
	"github.com/domzilla/webserver/url"
)

const (
	// DefaultServerName identifies the server in Server headers and
	// authentication realms when no name is configured.
	DefaultServerName = "DZWebServer"

	// DefaultBonjourType advertises plain HTTP.
	DefaultBonjourType = "_http._tcp"

	// DefaultMaxPendingConnections is the listen backlog asked of the
	// OS.
	DefaultMaxPendingConnections = 16

	// DefaultCoalescingInterval is how long the active-connection
	// count must stay zero before DidDisconnect fires.
	DefaultCoalescingInterval = time.Second
)

// An AuthMethod selects how Preflight validates credentials.
type AuthMethod int

const (
	// AuthNone disables authentication.
	AuthNone AuthMethod = iota

	// AuthBasic validates an Authorization: Basic header against the
	// plaintext account table.
	AuthBasic

	// AuthDigest validates RFC 2617 digest-access credentials.
	AuthDigest
)

// Options configure a server at Start. Use DefaultOptions as the
// baseline; the zero value of some fields (HEAD mapping, backlog,
// coalescing interval) differs from the documented defaults.
type Options struct {
	// Port to bind, 0 for an OS-assigned one.
	Port uint16

	// AdvertiseBonjour enables Bonjour advertisement by the host
	// integration. BonjourName empty means use ServerName.
	// Registration itself is host-side; the engine only computes
	// BonjourServerURL from these.
	AdvertiseBonjour bool
	BonjourName      string
	BonjourType      string
	BonjourTXT       map[string]string

	// RequestNATPortMapping asks the host integration for a NAT
	// mapping; the engine surfaces the result via PublicServerURL.
	RequestNATPortMapping bool

	// BindToLocalhost restricts both listeners to loopback.
	BindToLocalhost bool

	// MaxPendingConnections is the accept backlog. The Go runtime
	// delegates the actual backlog to the OS; the value is kept for
	// the host integration.
	MaxPendingConnections int

	// ServerName is emitted in the Server header.
	ServerName string

	// AuthenticationMethod, with its realm and user→password table.
	// The realm defaults to ServerName.
	AuthenticationMethod   AuthMethod
	AuthenticationRealm    string
	AuthenticationAccounts map[string]string

	// AutomaticallyMapHEADToGET rewrites HEAD to GET for matching and
	// discards the produced body.
	AutomaticallyMapHEADToGET bool

	// ConnectedStateCoalescingInterval delays DidDisconnect after the
	// last connection closes.
	ConnectedStateCoalescingInterval time.Duration

	// DispatchQueuePriority and AutomaticallySuspendInBackground are
	// recorded for the host platform integration; the engine itself
	// schedules with goroutines and never suspends.
	DispatchQueuePriority            int
	AutomaticallySuspendInBackground bool

	// NewConnection substitutes the connection constructor, the hook
	// for connection-level subclassing.
	NewConnection func(*Server, net.Conn) *Connection

	// EventSink receives lifecycle callbacks. Nil means synchronous
	// delivery on whatever goroutine noticed the event.
	EventSink func(func())

	// Logger overrides the process-wide default sink.
	Logger Logger

	// RecordingEnabled captures each connection into NNN.request /
	// NNN.response files in the current directory.
	RecordingEnabled bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() *Options {
	return &Options{
		BonjourType:                      DefaultBonjourType,
		MaxPendingConnections:            DefaultMaxPendingConnections,
		ServerName:                       DefaultServerName,
		AutomaticallyMapHEADToGET:        true,
		ConnectedStateCoalescingInterval: DefaultCoalescingInterval,
	}
}

// A Server owns the listener pair and the handler list. Handlers are
// registered while stopped and matched newest-first.
type Server struct {
	opts     Options
	handlers []*Handler
	auth     *authenticator

	ln4, ln6 net.Listener
	port     int

	running atomic.Bool

	mu            sync.Mutex
	active        int
	coalesceTimer *time.Timer

	recSeq atomic.Int64

	// Connection hooks; nil selects the documented default behavior.
	OnConnectionOpen  func(*Connection) bool
	RewriteRequestURL func(method string, t *url.Target, header hdr.Header) *url.Target
	Preflight         func(*Connection, *Request) *Response
	ProcessRequest    func(c *Connection, r *Request, process ProcessFunc, completion func(*Response))
	OverrideResponse  func(*Connection, *Request, *Response) *Response
	OnConnectionClose func(*Connection)

	// Lifecycle callbacks, delivered through the event sink.
	DidStart      func(*Server)
	DidStop       func(*Server)
	DidConnect    func(*Server)
	DidDisconnect func(*Server)
}

// NewServer returns a stopped server with no handlers.
func NewServer() *Server {
	return &Server{}
}

func (s *Server) name() string {
	if s.opts.ServerName != "" {
		return s.opts.ServerName
	}
	return DefaultServerName
}

func (s *Server) logger() Logger {
	if s.opts.Logger != nil {
		return s.opts.Logger
	}
	return defaultLogger
}

// Running reports whether the listeners are accepting.
func (s *Server) Running() bool { return s.running.Load() }

// Port returns the bound IPv4 port, zero while stopped.
func (s *Server) Port() uint16 { return uint16(s.port) }
