// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/actormesh/lib/config"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/lib/testutil"
	"github.com/bureau-foundation/actormesh/mesh"
)

const testTimeout = 5 * time.Second

// testConfig returns the default config rooted in a temporary state
// directory and listening on an ephemeral port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Listen = "127.0.0.1:0"
	cfg.Provenance.Journal = filepath.Join(cfg.StateDir, "provenance.journal")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	return cfg
}

type runningVat struct {
	endpoint string
	vat      *mesh.Vat
	stop     func() error
}

// startServe runs serveVat in the background until stop is called.
func startServe(t *testing.T, cfg *config.Config) *runningVat {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *runningVat, 1)
	result := make(chan error, 1)
	go func() {
		result <- serveVat(ctx, cfg, testutil.Logger(), func(endpoint string, vat *mesh.Vat) {
			ready <- &runningVat{endpoint: endpoint, vat: vat}
		})
	}()
	t.Cleanup(cancel)

	var running *runningVat
	select {
	case running = <-ready:
	case err := <-result:
		t.Fatalf("serveVat exited before listening: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("serveVat did not start listening")
	}
	running.stop = func() error {
		cancel()
		return testutil.RequireReceive(t, result, testTimeout, "serveVat did not stop")
	}
	return running
}

// waitForActor polls the vat's directory for a live actor named name.
func waitForActor(t *testing.T, vat *mesh.Vat, name string) ref.Address {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		for _, info := range vat.Snapshot() {
			if info.Name == name {
				return info.Address
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no actor named %q appeared", name)
	return ref.Address{}
}
