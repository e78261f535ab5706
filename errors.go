/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package webserver

import (
	"errors"
	"fmt"
)

var (
	// ErrServerRunning is returned when an operation requires a
	// stopped server.
	ErrServerRunning = errors.New("webserver: server is running")

	// ErrServerNotRunning is returned by Stop on a stopped server.
	ErrServerNotRunning = errors.New("webserver: server is not running")

	// ErrBodyTooLarge is the cause carried by the 413 error a data
	// request produces when the declared length exceeds its limit.
	ErrBodyTooLarge = errors.New("webserver: request body too large")
)

// An Error is a request failure destined for the wire. The connection
// renders it as a minimal HTML page with the matching status code.
type Error struct {
	Status     int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("HTTP %d: %s: %v", e.Status, e.Message, e.Underlying)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// NewError returns an Error with a formatted message.
func NewError(status int, format string, args ...interface{}) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewErrorWithCause returns an Error that keeps the underlying error
// for the rendered page and the logs.
func NewErrorWithCause(status int, cause error, format string, args ...interface{}) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...), Underlying: cause}
}

// asError maps any error to an *Error, defaulting to a 500.
func asError(err error) *Error {
	var webErr *Error
	if errors.As(err, &webErr) {
		return webErr
	}
	return &Error{Status: 500, Message: "Internal Server Error", Underlying: err}
}
