// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the mesh's single CBOR configuration.
//
// Everything that crosses a boundary is CBOR: message documents on the
// peer bridge, handshake and heartbeat frames, provenance journal
// records, and the diagnostics snapshot served to the CLI. Sharing one
// configuration means two vats always agree on the bytes for the same
// logical value.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2). Types that
// implement encoding.TextMarshaler, notably ref.Address, are written as
// CBOR text strings in their canonical form.
//
// Buffers:
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
// Streams (journal files):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Use `cbor` struct tags for types that are only ever CBOR (frames,
// journal records). Use `json` tags for types that are also rendered as
// JSON by the CLI; fxamacker/cbor falls back to them.
package codec
