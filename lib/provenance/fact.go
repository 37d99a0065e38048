// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provenance

import (
	"time"

	"github.com/bureau-foundation/actormesh/lib/ref"
)

// Kind names what a fact records.
type Kind string

const (
	// ProcessStarted: Subject is the proc, Object the actor address.
	// Detail "name" carries the actor's label.
	ProcessStarted Kind = "process.started"

	// ProcessParent: Subject is the proc, Object the boss's proc.
	ProcessParent Kind = "process.parent"

	// ProcessEnded: Subject is the proc, Object the actor address.
	// Detail "outcome" is OutcomeSuccess or OutcomeFailure; "error"
	// carries the failure text.
	ProcessEnded Kind = "process.ended"

	// Supervises: Subject is the supervisor, Object the child address.
	// Detail "name" is the child's name in the supervisor.
	Supervises Kind = "supervises"

	// PeerJoined: Subject is the bridged peer address, Object the vat.
	// Detail "mode" is "authenticated" or "anonymous"; "session" the
	// session ID; "remote" the network address.
	PeerJoined Kind = "peer.joined"

	// PeerLeft: Subject is the peer address. Detail "session" and
	// "reason".
	PeerLeft Kind = "peer.left"
)

// Outcome values for ProcessEnded.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Fact is one timestamped statement about the mesh.
type Fact struct {
	Kind    Kind
	Subject ref.Address
	Object  ref.Address
	Time    time.Time
	Detail  map[string]string
}

// Sink receives facts. Implementations must be safe for concurrent use.
type Sink interface {
	Record(Fact)
}

// Discard is a Sink that drops every fact.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Fact) {}

// Multi returns a Sink that records each fact to every sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Record(fact Fact) {
	for _, sink := range m {
		sink.Record(fact)
	}
}
