// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O helpers shared by the
// join transport and the CLI.
//
// Response helpers (ReadResponse, DecodeResponse, ErrorBody) bound body
// reads at MaxResponseSize so a misbehaving vat cannot exhaust the
// reader's memory. DecodeResponse speaks the mesh's CBOR encoding.
//
// IsExpectedCloseError classifies the errors that end a WebSocket
// session normally, so bridges can tell a peer hanging up from a real
// failure.
package netutil
