// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// Func is an actor's entry point. The context identifies the actor (see
// Self and Current) and is cancelled when the actor's boss scope is
// torn down.
type Func func(ctx context.Context) error

// Actor is the directory entry for one live address.
type Actor struct {
	vat     *Vat
	boss    *Actor
	address ref.Address
	proc    ref.Address
	name    string
	trap    bool
	monitor bool
	started time.Time

	mailbox chan *document.Message

	// scope holds this actor's children. Nil for registered entries
	// that have no task of their own.
	scope *scope

	done     chan struct{}
	doneOnce sync.Once
}

func newActor(vat *Vat, boss *Actor, address, proc ref.Address, name string, capacity int) *Actor {
	actor := &Actor{
		vat:     vat,
		boss:    boss,
		address: address,
		proc:    proc,
		name:    name,
		started: vat.clock.Now(),
		mailbox: make(chan *document.Message, capacity),
		done:    make(chan struct{}),
	}
	if boss == nil {
		actor.boss = actor
	}
	return actor
}

// Address is the actor's permanent logical address.
func (a *Actor) Address() ref.Address { return a.address }

// Proc is the address of this incarnation. A restarted actor keeps its
// Address and gets a new Proc. Zero for registered entries.
func (a *Actor) Proc() ref.Address { return a.proc }

// Boss is the supervising actor's address. The root is its own boss.
func (a *Actor) Boss() ref.Address { return a.boss.address }

// Name is the diagnostic label given at spawn.
func (a *Actor) Name() string { return a.name }

// Trap reports whether child failures are delivered to this actor as
// Exit notices instead of failing it.
func (a *Actor) Trap() bool { return a.trap }

// Vat returns the vat the actor lives in.
func (a *Actor) Vat() *Vat { return a.vat }

// Done is closed once the actor has been removed from the directory.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Queued is the number of messages waiting in the mailbox.
func (a *Actor) Queued() int { return len(a.mailbox) }

func (a *Actor) isRoot() bool { return a.boss == a }

func (a *Actor) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

type actorKey struct{}

func withActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Current returns the actor whose task ctx belongs to, or nil.
func Current(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorKey{}).(*Actor)
	return actor
}

// Self returns the address of the actor whose task ctx belongs to, or
// the zero address.
func Self(ctx context.Context) ref.Address {
	if actor := Current(ctx); actor != nil {
		return actor.address
	}
	return ref.Address{}
}
