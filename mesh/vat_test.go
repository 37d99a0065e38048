// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/lib/testutil"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without identity succeeded")
	}
	vat, _ := newTestVat(t, nil)
	if vat.mailboxCapacity != DefaultMailboxCapacity {
		t.Errorf("default mailbox capacity = %d, want %d", vat.mailboxCapacity, DefaultMailboxCapacity)
	}
}

func TestRootIsItsOwnBoss(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	observed := make(chan *Actor, 1)
	err := vat.Run(context.Background(), func(ctx context.Context) error {
		observed <- Current(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	root := <-observed
	if root.Address() != vat.URI() {
		t.Errorf("root address = %s, want vat URI %s", root.Address(), vat.URI())
	}
	if root.Boss() != root.Address() {
		t.Errorf("root boss = %s, want itself", root.Boss())
	}
	if vat.Len() != 0 {
		t.Errorf("directory has %d entries after Run, want 0", vat.Len())
	}
}

func TestRunOnlyOnce(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	if err := vat.Run(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	err := vat.Run(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrVatStopped) {
		t.Errorf("second Run = %v, want ErrVatStopped", err)
	}
	if _, err := vat.Spawn(context.Background(), idle, SpawnOptions{}); !errors.Is(err, ErrVatStopped) {
		t.Errorf("Spawn on stopped vat = %v, want ErrVatStopped", err)
	}
}

func TestRunCancellationIsClean(t *testing.T) {
	vat, facts := newTestVat(t, nil)
	stop := startVat(t, vat)
	if _, err := vat.Spawn(context.Background(), idle, SpawnOptions{Name: "idler"}); err != nil {
		t.Fatal(err)
	}
	if err := stop(); err != nil {
		t.Fatalf("Run after cancellation = %v, want nil", err)
	}
	for _, fact := range facts.OfKind(provenance.ProcessEnded) {
		if fact.Detail["outcome"] != provenance.OutcomeSuccess {
			t.Errorf("%s ended with %q after cancellation", fact.Detail["name"], fact.Detail["outcome"])
		}
	}
}

func TestDirectoryTracksLiveActors(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	stop := startVat(t, vat)
	defer stop()

	release := make(chan struct{})
	address, err := vat.Spawn(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	}, SpawnOptions{Name: "short-lived"})
	if err != nil {
		t.Fatal(err)
	}
	actor := vat.Actor(address)
	if actor == nil {
		t.Fatal("spawned actor is not in the directory")
	}
	if address.Kind() != ref.KindActor || address.Vat() != vat.URI() {
		t.Errorf("spawned address %s is not an actor in this vat", address)
	}
	if actor.Proc().Kind() != ref.KindProc || actor.Proc() == address {
		t.Errorf("proc = %s, want a distinct proc address", actor.Proc())
	}
	if vat.Len() != 2 {
		t.Errorf("Len() = %d, want root and one child", vat.Len())
	}

	close(release)
	testutil.RequireClosed(t, actor.Done(), testTimeout, "actor did not exit")
	if vat.Lookup(address) {
		t.Error("exited actor is still in the directory")
	}
}

func TestSelfIsPerActor(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	stop := startVat(t, vat)
	defer stop()

	reports := make(chan ref.Address, 16)
	var spawned []ref.Address
	for i := 0; i < 16; i++ {
		address, err := vat.Spawn(context.Background(), func(ctx context.Context) error {
			reports <- Self(ctx)
			return nil
		}, SpawnOptions{})
		if err != nil {
			t.Fatal(err)
		}
		spawned = append(spawned, address)
	}
	seen := make(map[ref.Address]bool)
	for range spawned {
		seen[testutil.RequireReceive(t, reports, testTimeout, "self report")] = true
	}
	for _, address := range spawned {
		if !seen[address] {
			t.Errorf("no actor reported Self() = %s", address)
		}
	}
	if !Self(context.Background()).IsZero() {
		t.Error("Self outside an actor is not zero")
	}
}

func TestSpawnAtChosenAddress(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	stop := startVat(t, vat)
	defer stop()

	address := vat.URI().MustChild(ref.KindActor, "stable")
	if _, err := vat.Spawn(context.Background(), idle, SpawnOptions{Address: address}); err != nil {
		t.Fatalf("Spawn at %s: %v", address, err)
	}
	_, err := vat.Spawn(context.Background(), idle, SpawnOptions{Address: address})
	if !errors.Is(err, ErrAddressInUse) {
		t.Errorf("second Spawn at %s = %v, want ErrAddressInUse", address, err)
	}

	foreign, _ := ref.NewVat(strings.Repeat("0", 64))
	if _, err := vat.Spawn(context.Background(), idle, SpawnOptions{Address: foreign.MustChild(ref.KindActor, "x")}); err == nil {
		t.Error("Spawn at another vat's address succeeded")
	}
	if _, err := vat.Spawn(context.Background(), idle, SpawnOptions{Address: vat.URI()}); err == nil {
		t.Error("Spawn at the vat address succeeded")
	}
}

func TestSpawnUnderExitedActor(t *testing.T) {
	vat, _ := newTestVat(t, nil)
	stop := startVat(t, vat)
	defer stop()

	captured := make(chan context.Context, 1)
	address, err := vat.Spawn(context.Background(), func(ctx context.Context) error {
		captured <- ctx
		return nil
	}, SpawnOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := testutil.RequireReceive(t, captured, testTimeout, "actor context")
	testutil.RequireClosed(t, Current(ctx).Done(), testTimeout, "actor did not exit")

	before := vat.Len()
	_, err = Spawn(ctx, idle, SpawnOptions{})
	if !errors.Is(err, ErrActorExited) {
		t.Errorf("Spawn under exited %s = %v, want ErrActorExited", address, err)
	}
	if vat.Len() != before {
		t.Errorf("failed spawn changed directory size from %d to %d", before, vat.Len())
	}
}

func TestProvenanceFacts(t *testing.T) {
	vat, facts := newTestVat(t, nil)
	rootProc := make(chan ref.Address, 1)
	err := vat.Run(context.Background(), func(ctx context.Context) error {
		rootProc <- Current(ctx).Proc()
		_, err := Spawn(ctx, func(context.Context) error { return nil }, SpawnOptions{Name: "child"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var childProc ref.Address
	for _, fact := range facts.OfKind(provenance.ProcessStarted) {
		if fact.Detail["name"] == "child" {
			childProc = fact.Subject
		}
	}
	if childProc.IsZero() {
		t.Fatalf("no process.started fact for child in %+v", facts.Facts())
	}

	parents := facts.OfKind(provenance.ProcessParent)
	if len(parents) != 1 || parents[0].Subject != childProc || parents[0].Object != <-rootProc {
		t.Errorf("process.parent facts = %+v", parents)
	}

	ended := facts.OfKind(provenance.ProcessEnded)
	if len(ended) != 2 {
		t.Fatalf("process.ended facts = %+v, want child and root", ended)
	}
	for _, fact := range ended {
		if fact.Detail["outcome"] != provenance.OutcomeSuccess {
			t.Errorf("%s outcome = %q", fact.Detail["name"], fact.Detail["outcome"])
		}
		if fact.Time.IsZero() {
			t.Errorf("%s has no end time", fact.Detail["name"])
		}
	}
}
