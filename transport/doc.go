// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport implements the peer join protocol: the WebSocket
// endpoint through which a remote party becomes a bridged actor in a
// vat, and the client side of the same protocol.
//
// # Endpoints
//
// [JoinHandler] serves:
//
//	GET /join/{key}     authenticated join; key is the peer's Ed25519
//	                    public key (multibase or bare hex)
//	GET /join           anonymous join, only when enabled
//	GET /debug/actors   CBOR snapshot of the vat directory
//
// # Handshake
//
// Every frame is one CBOR-encoded [Frame] in a binary WebSocket message.
// After the upgrade the vat sends a handshake frame carrying a fresh
// 32-byte challenge, its identity URI and public key, and its signature
// over the challenge. The peer checks that signature (optionally against
// a pinned key), then returns a response frame with its own signature
// over challenge || vat identity URI. The vat verifies it against the
// key from the URL. Binding the signed bytes to the vat's identity keeps
// a response made for one vat from being replayed against another; the
// two sides sign under different labels so neither signature can be
// reflected back as the other.
//
// Any failure sends an error frame, closes with a policy-violation
// status, and leaves the directory untouched. The whole handshake must
// finish within the handshake timeout (10s by default), and join
// attempts are rate limited.
//
// # Bridging
//
// On success the vat spawns an actor under its root at the address
// derived from the peer's key (anonymous peers get a fresh anon/
// address), sends a welcome frame with that address and a summary of
// the directory, and runs two loops for the life of the connection:
// one drains the actor's mailbox into message frames, the other
// delivers incoming message frames with mesh send semantics and answers
// heartbeats directly. When either loop stops, both stop, the actor
// exits, and a peer.left fact is recorded. A malformed frame ends the
// session; it never affects the vat.
//
// [Join] and [JoinAnonymous] return a [Session], the client's view of a
// bridged connection.
package transport
