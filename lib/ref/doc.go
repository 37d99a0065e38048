// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the validated, immutable address type used to
// name everything in an actor mesh: vats, actors, process incarnations,
// bridged peers, anonymous peers, and the temporary sinks created by
// request/response calls.
//
// Every address lives under a vat's identity URI:
//
//	vat:<64 hex digits>                     the vat itself (and its root actor)
//	vat:<64 hex digits>/actor/<uuid>        a spawned actor
//	vat:<64 hex digits>/proc/<uuid>         one incarnation of an actor
//	vat:<64 hex digits>/peer/<base32 key>   a peer admitted by public key
//	vat:<64 hex digits>/anon/<uuid>         a peer admitted without identity
//	vat:<64 hex digits>/call/<uuid>         a call's response sink
//
// The vat digest is computed by lib/identity; this package only
// enforces the shape. Constructors validate their inputs, so a
// non-zero [Address] is always well formed. Address is comparable and
// safe to use as a map key.
//
// The canonical serialization is the URI string. CBOR and JSON use it
// through encoding.TextMarshaler.
//
// This package depends on no other actormesh packages.
package ref
