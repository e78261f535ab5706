/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"fmt"
	"net"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// Start binds the IPv4 and IPv6 listeners and begins accepting. A nil
// opts uses DefaultOptions. The OS error is preserved on failure.
func (s *Server) Start(opts *Options) error {
	if s.running.Load() {
		return ErrServerRunning
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	s.opts = *opts
	if s.opts.BonjourType == "" {
		s.opts.BonjourType = DefaultBonjourType
	}
	if s.opts.ConnectedStateCoalescingInterval <= 0 {
		s.opts.ConnectedStateCoalescingInterval = DefaultCoalescingInterval
	}
	s.auth = newAuthenticator(s.opts.AuthenticationMethod, s.authRealm(), s.opts.AuthenticationAccounts)

	host4, host6 := "", "[::]"
	if s.opts.BindToLocalhost {
		host4, host6 = "127.0.0.1", "[::1]"
	}
	ln4, err := net.Listen("tcp4", fmt.Sprintf("%s:%d", host4, s.opts.Port))
	if err != nil {
		return fmt.Errorf("webserver: binding IPv4 listener: %w", err)
	}
	port := ln4.Addr().(*net.TCPAddr).Port
	ln6, err := net.Listen("tcp6", fmt.Sprintf("%s:%d", host6, port))
	if err != nil {
		// Dual-stack is best effort; plenty of hosts run without IPv6.
		s.logger().Warn("IPv6 listener unavailable on port %d: %v", port, err)
		ln6 = nil
	}
	s.ln4, s.ln6, s.port = ln4, ln6, port
	s.running.Store(true)

	go s.acceptLoop(ln4)
	if ln6 != nil {
		go s.acceptLoop(ln6)
	}

	s.logger().Info("%s started on port %d", s.name(), port)
	s.dispatch(s.DidStart)
	return nil
}

// Stop closes the listeners. In-flight connections run to completion.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return ErrServerNotRunning
	}
	s.running.Store(false)
	s.ln4.Close()
	if s.ln6 != nil {
		s.ln6.Close()
	}
	s.ln4, s.ln6 = nil, nil
	s.port = 0
	s.logger().Info("%s stopped", s.name())
	s.dispatch(s.DidStop)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		rwc, err := ln.Accept()
		if err != nil {
			// Listener closed by Stop, or a transient accept failure.
			if !s.running.Load() {
				return
			}
			s.logger().Warn("accept failed: %v", err)
			continue
		}
		s.connectionDidOpen()
		c := s.newConn(rwc)
		go func() {
			// serve's deferred close already released the socket and
			// settled the connection count before the panic surfaces
			// here; recovery only logs.
			if recovered := panics.Try(c.serve); recovered != nil {
				s.logger().Error("connection panic from %s: %v", rwc.RemoteAddr(), recovered)
			}
		}()
	}
}

func (s *Server) newConn(rwc net.Conn) *Connection {
	if factory := s.opts.NewConnection; factory != nil {
		return factory(s, rwc)
	}
	return newConnection(s, rwc)
}

// connectionDidOpen fires DidConnect on the 0→1 transition and cancels
// any pending DidDisconnect.
func (s *Server) connectionDidOpen() {
	s.mu.Lock()
	s.active++
	first := s.active == 1
	if s.coalesceTimer != nil {
		s.coalesceTimer.Stop()
		s.coalesceTimer = nil
		first = false
	}
	s.mu.Unlock()
	if first {
		s.dispatch(s.DidConnect)
	}
}

// connectionDidClose arms the coalescing timer when the count returns
// to zero; DidDisconnect fires only if it stays there.
func (s *Server) connectionDidClose() {
	s.mu.Lock()
	s.active--
	if s.active > 0 {
		s.mu.Unlock()
		return
	}
	interval := s.opts.ConnectedStateCoalescingInterval
	s.coalesceTimer = time.AfterFunc(interval, func() {
		s.mu.Lock()
		idle := s.active == 0
		s.coalesceTimer = nil
		s.mu.Unlock()
		if idle {
			s.dispatch(s.DidDisconnect)
		}
	})
	s.mu.Unlock()
}

// dispatch posts a lifecycle callback to the configured event sink.
func (s *Server) dispatch(fn func(*Server)) {
	if fn == nil {
		return
	}
	if sink := s.opts.EventSink; sink != nil {
		sink(func() { fn(s) })
		return
	}
	fn(s)
}

func (s *Server) authRealm() string {
	if s.opts.AuthenticationRealm != "" {
		return s.opts.AuthenticationRealm
	}
	return s.name()
}

// ServerURL returns the root URL reachable on the local network,
// empty while stopped.
func (s *Server) ServerURL() string {
	if !s.running.Load() {
		return ""
	}
	host := "localhost"
	if !s.opts.BindToLocalhost {
		if ip := primaryIPv4(); ip != "" {
			host = ip
		}
	}
	return s.formatURL(host, s.port)
}

// BonjourServerURL returns the ".local" URL when Bonjour advertisement
// is enabled, empty otherwise.
func (s *Server) BonjourServerURL() string {
	if !s.running.Load() || !s.opts.AdvertiseBonjour {
		return ""
	}
	name := s.opts.BonjourName
	if name == "" {
		name = s.name()
	}
	return s.formatURL(name+".local", s.port)
}

// PublicServerURL returns the NAT-mapped URL once the host integration
// resolved one. The engine itself performs no mapping.
func (s *Server) PublicServerURL() string {
	return ""
}

func (s *Server) formatURL(host string, port int) string {
	if port == 80 {
		return fmt.Sprintf("http://%s/", host)
	}
	return fmt.Sprintf("http://%s:%d/", host, port)
}

func primaryIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return ""
}
