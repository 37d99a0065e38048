// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity holds a vat's Ed25519 signing keypair and the pure
// functions that turn public keys into mesh addresses.
//
// A vat's identity URI is the BLAKE3 keyed hash of its complete public
// key, rendered as 64 hex digits under the "vat:" scheme (see lib/ref).
// A peer admitted through the join handshake is addressed by the
// multibase base32 form of its raw public key, namespaced under the
// admitting vat. Both are deterministic: no registry maps keys to
// addresses, and the same key always yields the same address.
//
// [Verify] is total. Malformed keys and signatures return false rather
// than panicking, because every input it sees on the join path comes
// from an unauthenticated network peer.
//
// The keystore functions persist the keypair in a state directory. The
// private key can be sealed to an age X25519 identity so that a copied
// state directory does not leak the vat's signing key.
package identity
