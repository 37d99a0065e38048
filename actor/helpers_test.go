// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/testutil"
	"github.com/bureau-foundation/actormesh/mesh"
)

const testTimeout = 5 * time.Second

// runTrappingVat starts a vat whose root traps and forwards every Exit
// notice it receives to the returned channel.
func runTrappingVat(t *testing.T) (*mesh.Vat, *provenance.Memory, <-chan mesh.Exit) {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	facts := provenance.NewMemory()
	vat, err := mesh.New(mesh.Config{
		Identity:   id,
		RootTrap:   true,
		Provenance: facts,
		Logger:     testutil.Logger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	exits := make(chan mesh.Exit, 16)
	result := make(chan error, 1)
	go func() {
		result <- vat.Run(ctx, func(ctx context.Context) error {
			close(ready)
			for {
				msg, err := mesh.Receive(ctx)
				if err != nil {
					return err
				}
				if exit, ok := mesh.ParseExit(msg); ok {
					exits <- exit
				}
			}
		})
	}()
	testutil.RequireClosed(t, ready, testTimeout, "vat did not start")
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, result, testTimeout, "vat did not stop"); err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return vat, facts, exits
}

func waitForFact(t *testing.T, facts *provenance.Memory, match func(provenance.Fact) bool) provenance.Fact {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	fact, err := facts.WaitFor(ctx, match)
	if err != nil {
		t.Fatalf("waiting for fact: %v", err)
	}
	return fact
}
