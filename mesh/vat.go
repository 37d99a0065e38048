// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/actormesh/lib/clock"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// DefaultMailboxCapacity is the mailbox size used when neither the vat
// nor the spawn options set one.
const DefaultMailboxCapacity = 8

// Config configures a Vat.
type Config struct {
	// Identity is the vat's keypair. Its URI is the root actor's
	// address. Required.
	Identity *identity.Identity

	// MailboxCapacity is the default mailbox size. Zero means
	// DefaultMailboxCapacity.
	MailboxCapacity int

	// CallTimeout bounds every Call in addition to the caller's
	// context. Zero means no vat-wide bound.
	CallTimeout time.Duration

	// RootTrap makes the root actor trap child failures: Run keeps
	// going and the root receives Exit notices instead.
	RootTrap bool

	// RootName labels the root actor. Defaults to "root".
	RootName string

	// Provenance receives lifecycle facts. Nil discards them.
	Provenance provenance.Sink

	// Clock stamps facts and start times. Nil means the real clock.
	Clock clock.Clock

	// Logger receives lifecycle logs. Nil discards them.
	Logger *slog.Logger
}

type vatState int

const (
	vatIdle vatState = iota
	vatRunning
	vatStopped
)

// Vat is one running mesh instance: an identity, a root actor, and the
// directory of live actors.
type Vat struct {
	identity        *identity.Identity
	uri             ref.Address
	mailboxCapacity int
	callTimeout     time.Duration
	rootTrap        bool
	rootName        string
	provenance      provenance.Sink
	clock           clock.Clock
	logger          *slog.Logger

	mu        sync.RWMutex
	state     vatState
	root      *Actor
	directory map[ref.Address]*Actor
}

// New creates a vat. It does not start anything until Run.
func New(config Config) (*Vat, error) {
	if config.Identity == nil {
		return nil, errors.New("vat identity is required")
	}
	if config.MailboxCapacity < 0 {
		return nil, fmt.Errorf("mailbox capacity %d is negative", config.MailboxCapacity)
	}
	if config.MailboxCapacity == 0 {
		config.MailboxCapacity = DefaultMailboxCapacity
	}
	if config.CallTimeout < 0 {
		return nil, fmt.Errorf("call timeout %s is negative", config.CallTimeout)
	}
	if config.RootName == "" {
		config.RootName = "root"
	}
	if config.Provenance == nil {
		config.Provenance = provenance.Discard
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Vat{
		identity:        config.Identity,
		uri:             config.Identity.URI(),
		mailboxCapacity: config.MailboxCapacity,
		callTimeout:     config.CallTimeout,
		rootTrap:        config.RootTrap,
		rootName:        config.RootName,
		provenance:      config.Provenance,
		clock:           config.Clock,
		logger:          config.Logger,
		directory:       make(map[ref.Address]*Actor),
	}, nil
}

// Run runs main as the root actor and blocks until the root and every
// descendant have exited. It returns nil when main returns nil or
// returns because ctx was cancelled, and an *ActorCrashedError for the
// root when main fails or an untrapped child failure reaches it.
//
// A vat runs once.
func (v *Vat) Run(ctx context.Context, main Func) error {
	root := newActor(v, nil, v.uri, v.newAddress(ref.KindProc), v.rootName, v.mailboxCapacity)
	root.trap = v.rootTrap
	root.scope = newScope(ctx)

	v.mu.Lock()
	if v.state != vatIdle {
		v.mu.Unlock()
		root.scope.cancel()
		return fmt.Errorf("running vat %s: %w", v.uri.Short(), ErrVatStopped)
	}
	v.state = vatRunning
	v.root = root
	v.directory[root.address] = root
	v.mu.Unlock()

	v.logger.Info("vat started", "vat", v.uri.String(), "proc", root.proc.String())
	err := v.execute(root, main)

	v.mu.Lock()
	v.state = vatStopped
	v.root = nil
	v.mu.Unlock()

	if err != nil {
		crash := &ActorCrashedError{Address: root.address, Proc: root.proc, Name: root.name, Err: err}
		v.logger.Error("vat stopped after root failure", "vat", v.uri.String(), "error", err)
		return crash
	}
	v.logger.Info("vat stopped", "vat", v.uri.String())
	return nil
}

// URI is the vat's identity URI and the root actor's address.
func (v *Vat) URI() ref.Address { return v.uri }

// Identity is the vat's keypair.
func (v *Vat) Identity() *identity.Identity { return v.identity }

// Clock is the vat's time source.
func (v *Vat) Clock() clock.Clock { return v.clock }

// Logger is the vat's logger.
func (v *Vat) Logger() *slog.Logger { return v.logger }

// Running reports whether Run is in progress.
func (v *Vat) Running() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state == vatRunning
}

// Emit records a provenance fact stamped with the vat clock.
func (v *Vat) Emit(kind provenance.Kind, subject, object ref.Address, detail map[string]string) {
	v.provenance.Record(provenance.Fact{
		Kind:    kind,
		Subject: subject,
		Object:  object,
		Time:    v.clock.Now(),
		Detail:  detail,
	})
}

// Lookup reports whether address is live in the directory.
func (v *Vat) Lookup(address ref.Address) bool {
	return v.lookup(address) != nil
}

// Actor returns the directory entry for address, or nil.
func (v *Vat) Actor(address ref.Address) *Actor {
	return v.lookup(address)
}

// Len is the number of live directory entries, the root included.
func (v *Vat) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.directory)
}

// Addresses returns every live address in sorted order.
func (v *Vat) Addresses() []ref.Address {
	v.mu.RLock()
	addresses := make([]ref.Address, 0, len(v.directory))
	for address := range v.directory {
		addresses = append(addresses, address)
	}
	v.mu.RUnlock()
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].String() < addresses[j].String()
	})
	return addresses
}

func (v *Vat) lookup(address ref.Address) *Actor {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.directory[address]
}

func (v *Vat) insert(actor *Actor) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != vatRunning {
		return ErrVatStopped
	}
	if _, exists := v.directory[actor.address]; exists {
		return fmt.Errorf("%s: %w", actor.address, ErrAddressInUse)
	}
	v.directory[actor.address] = actor
	return nil
}

// remove deletes actor's entry if it is still the one registered under
// its address. A restarted actor may already own the address again.
func (v *Vat) remove(actor *Actor) {
	v.mu.Lock()
	if v.directory[actor.address] == actor {
		delete(v.directory, actor.address)
	}
	v.mu.Unlock()
	actor.finish()
}

// bossFor resolves the actor that ctx belongs to, falling back to the
// root for contexts from outside the mesh (HTTP handlers, tests).
func (v *Vat) bossFor(ctx context.Context) *Actor {
	if actor := Current(ctx); actor != nil && actor.vat == v {
		return actor
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.root
}

func (v *Vat) newAddress(kind ref.Kind) ref.Address {
	return v.uri.MustChild(kind, uuid.NewString())
}
