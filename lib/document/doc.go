// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package document defines the message envelope exchanged between
// actors.
//
// A [Message] is a uniquely identified, self-describing document: an
// ID, a declared type used for routing, and a bag of attribute
// statements. The mesh treats attributes as opaque. Two attributes are
// lifted into fields because the mesh itself acts on them: ReplyTo (the
// addresses a response should be delivered to) and IsResponseTo (the ID
// of the request a message answers).
//
// Messages are immutable once sent. Code that needs to change a
// message before forwarding it should [Message.Clone] it first; the
// mesh does this itself when a call stamps ReplyTo.
package document
