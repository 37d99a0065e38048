// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/actormesh/lib/ref"
)

var (
	// ErrUnknownActor matches every *UnknownActorError.
	ErrUnknownActor = errors.New("unknown actor")

	// ErrActorCrashed matches every *ActorCrashedError.
	ErrActorCrashed = errors.New("actor crashed")

	// ErrVatStopped is returned by operations that need a running vat.
	ErrVatStopped = errors.New("vat is not running")

	// ErrAddressInUse is returned when spawning or registering an
	// address that is already live.
	ErrAddressInUse = errors.New("address already in use")

	// ErrActorExited is returned when spawning under an actor whose
	// scope has already been closed.
	ErrActorExited = errors.New("actor has exited")

	// ErrNoActor is returned by Receive and the package-level
	// primitives when the context does not belong to an actor.
	ErrNoActor = errors.New("context does not belong to an actor")
)

// UnknownActorError reports a send to an address that is not in the
// directory: never spawned, already exited, or exited while the sender
// was blocked on its full mailbox.
type UnknownActorError struct {
	Address ref.Address
}

func (e *UnknownActorError) Error() string {
	return fmt.Sprintf("unknown actor %s", e.Address)
}

func (e *UnknownActorError) Is(target error) bool {
	return target == ErrUnknownActor
}

// ActorCrashedError reports that an actor's task ended with an error.
// Err is what the function returned, or the crash of a child that took
// the actor down with it.
type ActorCrashedError struct {
	Address ref.Address
	Proc    ref.Address
	Name    string
	Err     error
}

func (e *ActorCrashedError) Error() string {
	return fmt.Sprintf("actor %q (%s) crashed: %v", e.Name, e.Address.Short(), e.Err)
}

func (e *ActorCrashedError) Is(target error) bool {
	return target == ErrActorCrashed
}

func (e *ActorCrashedError) Unwrap() error {
	return e.Err
}

// PanicError is the crash reason of an actor whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
