// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// SpawnOptions adjusts a spawned actor. The zero value spawns an
// untrapped actor named "actor" at a fresh address.
type SpawnOptions struct {
	// Name labels the actor in logs, facts, and the tree.
	Name string

	// Trap delivers child failures to this actor as Exit notices.
	Trap bool

	// Monitor delivers an Exit notice to the boss when this actor
	// returns normally too. Only meaningful under a trapping boss.
	Monitor bool

	// Address runs the actor under a chosen address in this vat
	// instead of a fresh actor/ address. Supervisors use it to restart
	// a child in place; the peer bridge uses it for derived peer
	// addresses.
	Address ref.Address

	// MailboxCapacity overrides the vat default.
	MailboxCapacity int
}

// Spawn starts fn as a child of the actor ctx belongs to and returns its
// address without waiting for it to run.
func Spawn(ctx context.Context, fn Func, options SpawnOptions) (ref.Address, error) {
	actor := Current(ctx)
	if actor == nil {
		return ref.Address{}, ErrNoActor
	}
	return actor.vat.Spawn(ctx, fn, options)
}

// Spawn starts fn as a child of the actor ctx belongs to, or of the
// root when ctx comes from outside the vat.
func (v *Vat) Spawn(ctx context.Context, fn Func, options SpawnOptions) (ref.Address, error) {
	boss := v.bossFor(ctx)
	if boss == nil {
		return ref.Address{}, ErrVatStopped
	}
	if boss.scope == nil {
		return ref.Address{}, fmt.Errorf("spawning under %s: registered entries cannot have children", boss.address)
	}

	capacity := options.MailboxCapacity
	if capacity < 0 {
		return ref.Address{}, fmt.Errorf("mailbox capacity %d is negative", capacity)
	}
	if capacity == 0 {
		capacity = v.mailboxCapacity
	}
	name := options.Name
	if name == "" {
		name = "actor"
	}
	address := options.Address
	if address.IsZero() {
		address = v.newAddress(ref.KindActor)
	} else if address.Vat() != v.uri || address.IsVat() {
		return ref.Address{}, fmt.Errorf("spawning at %s: address does not name an actor in vat %s", address, v.uri.Short())
	}

	child := newActor(v, boss, address, v.newAddress(ref.KindProc), name, capacity)
	child.trap = options.Trap
	child.monitor = options.Monitor
	child.scope = newScope(boss.scope.ctx)

	if err := v.insert(child); err != nil {
		child.scope.cancel()
		return ref.Address{}, fmt.Errorf("spawning %q: %w", name, err)
	}
	scheduled := boss.scope.start(func() error {
		return v.runChild(child, fn)
	})
	if !scheduled {
		child.scope.cancel()
		v.remove(child)
		return ref.Address{}, fmt.Errorf("spawning %q under %s: %w", name, boss.address.Short(), ErrActorExited)
	}
	return address, nil
}

// runChild executes child and applies the supervision rule to its
// outcome. The returned error, if any, fails the boss's scope.
func (v *Vat) runChild(child *Actor, fn Func) error {
	err := v.execute(child, fn)
	boss := child.boss

	if err == nil {
		if child.monitor && boss.trap {
			v.deliverExit(child, nil)
		}
		return nil
	}

	crash := &ActorCrashedError{Address: child.address, Proc: child.proc, Name: child.name, Err: err}
	if boss.trap {
		v.logger.Info("trapped actor failure",
			"actor", child.address.String(),
			"name", child.name,
			"boss", boss.address.String(),
			"error", err,
		)
		v.deliverExit(child, crash)
		return nil
	}
	v.logger.Warn("actor crashed",
		"actor", child.address.String(),
		"name", child.name,
		"boss", boss.address.String(),
		"error", err,
	)
	return crash
}

// execute runs fn as actor's task. It records the start facts, runs fn,
// cancels and awaits the actor's children, then removes the actor from
// the directory and records the end fact. The result is nil for a clean
// or cancellation-caused exit and the failure otherwise.
func (v *Vat) execute(actor *Actor, fn Func) (err error) {
	v.recordStart(actor)
	defer func() {
		v.remove(actor)
		v.recordEnd(actor, err)
	}()

	ctx := withActor(actor.scope.ctx, actor)
	fnErr := callProtected(ctx, fn)
	cancelled := actor.scope.ctx.Err() != nil
	childErr := actor.scope.close()

	if fnErr != nil && !(cancelled && isCancellation(fnErr)) {
		return fnErr
	}
	return childErr
}

func callProtected(ctx context.Context, fn Func) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// deliverExit sends child's Exit notice to its boss. It gives up when
// the boss exits or its scope is torn down before there is room.
func (v *Vat) deliverExit(child *Actor, crash *ActorCrashedError) {
	boss := child.boss
	notice := exitMessage(child, crash)
	select {
	case boss.mailbox <- notice:
	case <-boss.done:
	case <-boss.scope.ctx.Done():
		v.logger.Debug("dropped exit notice for exiting boss",
			"actor", child.address.String(),
			"boss", boss.address.String(),
		)
	}
}

func (v *Vat) recordStart(actor *Actor) {
	v.logger.Debug("actor started",
		"actor", actor.address.String(),
		"proc", actor.proc.String(),
		"name", actor.name,
	)
	v.Emit(provenance.ProcessStarted, actor.proc, actor.address, map[string]string{"name": actor.name})
	if !actor.isRoot() {
		v.Emit(provenance.ProcessParent, actor.proc, actor.boss.proc, nil)
	}
}

func (v *Vat) recordEnd(actor *Actor, err error) {
	detail := map[string]string{"name": actor.name, "outcome": provenance.OutcomeSuccess}
	if err != nil {
		detail["outcome"] = provenance.OutcomeFailure
		detail["error"] = err.Error()
	}
	v.Emit(provenance.ProcessEnded, actor.proc, actor.address, detail)
	v.logger.Debug("actor ended",
		"actor", actor.address.String(),
		"proc", actor.proc.String(),
		"outcome", detail["outcome"],
	)
}

// scope is the errgroup an actor's children run in. Its context is
// the actor's own context: a failing child cancels the actor and all
// its other children.
type scope struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newScope(parent context.Context) *scope {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &scope{group: group, ctx: ctx, cancel: cancel}
}

// start runs fn in the scope unless the scope is already closing.
func (s *scope) start(fn func() error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.group.Go(fn)
	return true
}

// close cancels the scope, waits for every child, and returns the first
// child failure.
func (s *scope) close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return s.group.Wait()
}
