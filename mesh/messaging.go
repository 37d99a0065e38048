// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// Send delivers msg to the mailbox at address, blocking while it is
// full. ctx must belong to an actor.
func Send(ctx context.Context, to ref.Address, msg *document.Message) error {
	actor := Current(ctx)
	if actor == nil {
		return ErrNoActor
	}
	return actor.vat.Send(ctx, to, msg)
}

// Send delivers msg to the mailbox at address. It fails with an
// *UnknownActorError if the address is not live or exits before there
// is room, and with ctx's error if ctx ends first. The message is
// delivered as is; senders must not modify it afterwards.
func (v *Vat) Send(ctx context.Context, to ref.Address, msg *document.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}
	target := v.lookup(to)
	if target == nil {
		return &UnknownActorError{Address: to}
	}
	select {
	case target.mailbox <- msg:
		return nil
	default:
	}
	select {
	case target.mailbox <- msg:
		return nil
	case <-target.done:
		return &UnknownActorError{Address: to}
	case <-ctx.Done():
		return fmt.Errorf("sending to %s: %w", to, ctx.Err())
	}
}

// Receive returns the next message in the calling actor's mailbox,
// blocking until one arrives or ctx ends.
func Receive(ctx context.Context) (*document.Message, error) {
	actor := Current(ctx)
	if actor == nil {
		return nil, ErrNoActor
	}
	select {
	case msg := <-actor.mailbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call sends msg to address and waits for one response. ctx must
// belong to an actor.
func Call(ctx context.Context, to ref.Address, msg *document.Message) (*document.Message, error) {
	actor := Current(ctx)
	if actor == nil {
		return nil, ErrNoActor
	}
	return actor.vat.Call(ctx, to, msg)
}

// Call sends a copy of msg whose ReplyTo is a temporary call/ address,
// waits for the single message delivered there, and deregisters the
// temporary address. The wait ends early when ctx or the vat's call
// timeout expires. msg itself is not modified.
func (v *Vat) Call(ctx context.Context, to ref.Address, msg *document.Message) (*document.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("calling %s: %w", to, err)
	}
	if v.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.callTimeout)
		defer cancel()
	}

	sink, err := v.Register(ctx, RegisterOptions{Kind: ref.KindCall, Name: "call", MailboxCapacity: 1})
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", to, err)
	}
	defer v.Deregister(sink.address)

	request := msg.Clone()
	request.ReplyTo = []ref.Address{sink.address}
	if err := v.Send(ctx, to, request); err != nil {
		return nil, fmt.Errorf("calling %s: %w", to, err)
	}

	select {
	case response := <-sink.mailbox:
		return response, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("calling %s: waiting for response to %s: %w", to, request.ID, ctx.Err())
	}
}

// RegisterOptions describes a directory entry with no task of its own.
type RegisterOptions struct {
	// Kind mints a fresh address of this kind. Ignored when Address
	// is set.
	Kind ref.Kind

	// Address registers a chosen address in this vat.
	Address ref.Address

	Name            string
	MailboxCapacity int
}

// Register installs a mailbox in the directory without starting a
// task. Its boss is the actor ctx belongs to, or the root. Messages
// sent to it wait until the owner drains them; the owner must call
// Deregister when done.
func (v *Vat) Register(ctx context.Context, options RegisterOptions) (*Actor, error) {
	boss := v.bossFor(ctx)
	if boss == nil {
		return nil, ErrVatStopped
	}
	address := options.Address
	if address.IsZero() {
		if options.Kind == ref.KindVat {
			return nil, fmt.Errorf("registering: kind or address is required")
		}
		address = v.newAddress(options.Kind)
	} else if address.Vat() != v.uri || address.IsVat() {
		return nil, fmt.Errorf("registering %s: address does not belong to vat %s", address, v.uri.Short())
	}
	capacity := options.MailboxCapacity
	if capacity <= 0 {
		capacity = v.mailboxCapacity
	}
	name := options.Name
	if name == "" {
		name = string(address.Kind())
	}

	entry := newActor(v, boss, address, ref.Address{}, name, capacity)
	if err := v.insert(entry); err != nil {
		return nil, fmt.Errorf("registering %s: %w", address, err)
	}
	return entry, nil
}

// Deregister removes a registered entry and closes its Done channel.
// It reports whether the address was registered. Deregister refuses
// entries that have a running task.
func (v *Vat) Deregister(address ref.Address) bool {
	entry := v.lookup(address)
	if entry == nil || entry.scope != nil {
		return false
	}
	v.remove(entry)
	return true
}

// Next returns the next message in a registered entry's mailbox.
func (a *Actor) Next(ctx context.Context) (*document.Message, error) {
	select {
	case msg := <-a.mailbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
