/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command webdavd shares a directory over WebDAV. It exists to show
// the embedding contract: build a server, attach handlers, start,
// wait.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/domzilla/webserver"
	"github.com/domzilla/webserver/webdav"
)

func main() {
	var (
		port       = flag.Uint("port", 8080, "port to listen on, 0 for an OS-assigned one")
		root       = flag.String("root", ".", "directory to share")
		localhost  = flag.Bool("localhost", false, "bind to loopback only")
		name       = flag.String("name", "", "server name for the Server header and auth realm")
		authMode   = flag.String("auth", "none", "authentication mode: none, basic or digest")
		accounts   = flag.String("accounts", "", "comma-separated user:password pairs")
		extensions = flag.String("extensions", "", "comma-separated allowed file extensions, empty for all")
		hidden     = flag.Bool("hidden", false, "expose dot-prefixed items")
		logFile    = flag.String("log-file", "", "log to this rotated file instead of stderr")
		verbose    = flag.Bool("verbose", false, "log every request")
	)
	flag.Parse()

	logger := buildLogger(*logFile, *verbose)

	opts := webserver.DefaultOptions()
	opts.Port = uint16(*port)
	opts.BindToLocalhost = *localhost
	opts.Logger = logger
	if *name != "" {
		opts.ServerName = *name
	}
	if err := configureAuth(opts, *authMode, *accounts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	server := webserver.NewServer()
	handler := webdav.New(webdav.Config{
		Root:                  *root,
		AllowedFileExtensions: splitList(*extensions),
		AllowHiddenItems:      *hidden,
	})
	handler.Register(server)

	if err := server.Start(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("serving %s at %s\n", *root, server.ServerURL())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	server.Stop()
}

func buildLogger(logFile string, verbose bool) webserver.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if logFile != "" {
		sink := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 5,
			Compress:   true,
		}
		zl := zerolog.New(sink).Level(level).With().Timestamp().Logger()
		return webserver.NewZerologLogger(zl)
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	return webserver.NewZerologLogger(zl)
}

func configureAuth(opts *webserver.Options, mode, accounts string) error {
	switch mode {
	case "none":
		return nil
	case "basic":
		opts.AuthenticationMethod = webserver.AuthBasic
	case "digest":
		opts.AuthenticationMethod = webserver.AuthDigest
	default:
		return fmt.Errorf("unknown auth mode %q", mode)
	}
	opts.AuthenticationAccounts = make(map[string]string)
	for _, pair := range splitList(accounts) {
		user, password, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("malformed account %q, want user:password", pair)
		}
		opts.AuthenticationAccounts[user] = password
	}
	if len(opts.AuthenticationAccounts) == 0 {
		return fmt.Errorf("auth mode %q needs at least one account", mode)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
