// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package actor provides the two long-running actor shapes built on
// package mesh: the message-loop server and the fixed-membership
// supervisor.
//
// [Serve] turns a [Server] into a mesh.Func: it runs the optional
// [Initializer] hook, then receives one message at a time, hands it to
// Handle, and sends the response to every address in the request's
// ReplyTo. Handler errors are not caught; they fail the actor and the
// mesh applies its supervision rule.
//
// [Routes] is a dispatch table from message type to handler method,
// built once per server type (usually a package-level variable) rather
// than per message. [Routed] adapts a value and its table to [Server].
//
// [Supervisor] starts a fixed set of named children, records a
// "supervises" fact for each, and restarts them with exponential
// backoff according to their [RestartPolicy]. Restarted children keep
// their address and get a new proc. If children restart more often
// than the configured intensity allows, the supervisor fails with
// [ErrRestartIntensity] and its own boss decides what happens next.
package actor
