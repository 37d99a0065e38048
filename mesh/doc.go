// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mesh is the actor runtime: a vat's directory of live actors,
// the structured-concurrency scopes they run in, and the send, receive,
// and call primitives they communicate with.
//
// # Vat and directory
//
// A [Vat] is one running instance of the mesh. Its root actor's address
// is the vat's identity URI and the root is its own boss. The directory
// maps every live address to its [Actor]: an address is present exactly
// while a task runs under it, or while something registered it without
// a task (a call's response sink, see [Vat.Register]).
//
// # Spawning and supervision
//
// [Spawn] creates a child of the current actor and starts it in the
// parent's scope. Each actor owns a scope (an errgroup) for its own
// children. When an actor's function returns, its scope is cancelled and
// awaited, so no child outlives its parent.
//
// When a child fails (returns a non-cancellation error or panics):
//
//   - if its boss traps, the boss receives an Exit notice ([ParseExit])
//     in its mailbox and the failure goes no further;
//   - otherwise the failure is returned into the boss's scope as an
//     [*ActorCrashedError]. That cancels the boss and all its other
//     children, and the boss in turn fails to its own boss. An untrapped
//     failure that reaches the root is returned by [Vat.Run].
//
// An actor whose function returns because its scope was cancelled has
// not crashed.
//
// # Messaging
//
// [Send] delivers to a mailbox (bounded, default capacity 8) and blocks
// while it is full. [Receive] takes the next message from the calling
// actor's mailbox in FIFO order. [Call] registers a temporary call/
// address as the reply sink, sends the request with ReplyTo set to it,
// waits for exactly one response, and deregisters the sink.
//
// The current actor is carried in the context.Context passed to an
// actor's function; every primitive takes that context.
package mesh
