// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for actormesh binaries:
//
//   - [Fatal] reports an error to stderr when the structured logger may
//     not exist yet, and exits.
//   - [NewLogger] builds the process logger: text on a terminal, JSON
//     otherwise, optionally fanned out to a JSON log file.
//   - [SignalContext] is the root context cancelled by SIGINT or
//     SIGTERM.
package process
