/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"os"

	"github.com/rs/zerolog"
)

// A Logger is the pluggable logging sink used by the server and its
// connections. Implementations must be safe for concurrent use.
type Logger interface {
	Verbose(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// zerologSink adapts a zerolog.Logger to the Logger interface.
// Verbose maps to the debug level.
type zerologSink struct {
	zl zerolog.Logger
}

// NewZerologLogger returns a Logger backed by the given zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologSink{zl: zl}
}

func (s *zerologSink) Verbose(format string, args ...interface{}) {
	s.zl.Debug().Msgf(format, args...)
}

func (s *zerologSink) Info(format string, args ...interface{}) {
	s.zl.Info().Msgf(format, args...)
}

func (s *zerologSink) Warn(format string, args ...interface{}) {
	s.zl.Warn().Msgf(format, args...)
}

func (s *zerologSink) Error(format string, args ...interface{}) {
	s.zl.Error().Msgf(format, args...)
}

// defaultLogger writes to standard error.
var defaultLogger Logger = NewZerologLogger(
	zerolog.New(os.Stderr).With().Timestamp().Logger(),
)

// SetDefaultLogger replaces the process-wide fallback sink used where
// no per-server logger applies. Call it before starting any server.
func SetDefaultLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}
