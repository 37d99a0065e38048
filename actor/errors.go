// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"errors"
	"fmt"
)

// ErrRestartIntensity is returned by a supervisor whose children
// restarted more often than its intensity limit allows.
var ErrRestartIntensity = errors.New("restart intensity exceeded")

// ErrUnrecognizedMessageType matches every *UnrecognizedMessageTypeError.
var ErrUnrecognizedMessageType = errors.New("unrecognized message type")

// UnrecognizedMessageTypeError is returned by Routes.Dispatch for a
// message whose type has no handler.
type UnrecognizedMessageTypeError struct {
	Type      string
	MessageID string
}

func (e *UnrecognizedMessageTypeError) Error() string {
	return fmt.Sprintf("unrecognized message type %q (message %s)", e.Type, e.MessageID)
}

func (e *UnrecognizedMessageTypeError) Is(target error) bool {
	return target == ErrUnrecognizedMessageType
}
