// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package provenance defines the timestamped facts the mesh emits at
// lifecycle boundaries, and the sinks that receive them.
//
// The mesh core does not store provenance. It calls [Sink.Record] at
// well-defined points (process start, parentage, process end, peer join
// and leave, supervision edges) and leaves persistence to whatever sink
// the vat was configured with:
//
//   - [Discard] drops everything.
//   - [Memory] keeps facts in memory and lets tests wait for them.
//   - [LogSink] writes each fact as a structured log record.
//   - [Journal] appends facts to a file as a CBOR sequence, each record
//     optionally compressed with zstd or LZ4. [ReadJournal] reads it back.
//   - [Multi] fans out to several sinks.
//
// Record never returns an error. A sink that cannot persist a fact logs
// the failure; provenance loss must not crash an actor.
package provenance
