// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is wrapped by handshake failures caused by a
	// signature that does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrHandshakeFailed matches every *HandshakeError.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrMalformedFrame matches every *MalformedFrameError.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrSessionClosed is returned by Session methods after the
	// connection has ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrReceiveQueueFull ends a session whose owner stopped calling
	// Receive.
	ErrReceiveQueueFull = errors.New("receive queue full")
)

// HandshakeError reports why a join attempt was refused.
type HandshakeError struct {
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed: %s: %v", e.Reason, e.Err)
	}
	return "handshake failed: " + e.Reason
}

func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshakeFailed
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// MalformedFrameError reports a frame that could not be decoded or was
// not valid in the current state.
type MalformedFrameError struct {
	Reason string
	Err    error
}

func (e *MalformedFrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed frame: %s: %v", e.Reason, e.Err)
	}
	return "malformed frame: " + e.Reason
}

func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}
