// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package provenance

import (
	"context"
	"sync"
)

// Memory is a Sink that keeps every fact. Tests use it to assert on
// lifecycle events without racing the goroutines that emit them.
type Memory struct {
	mu      sync.Mutex
	facts   []Fact
	changed chan struct{}
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{changed: make(chan struct{})}
}

// Record appends fact and wakes any waiters.
func (m *Memory) Record(fact Fact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = append(m.facts, fact)
	close(m.changed)
	m.changed = make(chan struct{})
}

// Facts returns a copy of everything recorded so far.
func (m *Memory) Facts() []Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Fact(nil), m.facts...)
}

// OfKind returns the recorded facts of one kind, in order.
func (m *Memory) OfKind(kind Kind) []Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Fact
	for _, fact := range m.facts {
		if fact.Kind == kind {
			matched = append(matched, fact)
		}
	}
	return matched
}

// WaitFor blocks until a fact satisfying match has been recorded
// (including before the call) and returns the first such fact.
func (m *Memory) WaitFor(ctx context.Context, match func(Fact) bool) (Fact, error) {
	seen := 0
	for {
		m.mu.Lock()
		for ; seen < len(m.facts); seen++ {
			if match(m.facts[seen]) {
				fact := m.facts[seen]
				m.mu.Unlock()
				return fact, nil
			}
		}
		changed := m.changed
		m.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return Fact{}, ctx.Err()
		}
	}
}
