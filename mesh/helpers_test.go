// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/testutil"
)

const testTimeout = 5 * time.Second

// newTestVat returns a vat wired to a Memory provenance sink.
func newTestVat(t *testing.T, configure func(*Config)) (*Vat, *provenance.Memory) {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	facts := provenance.NewMemory()
	config := Config{Identity: id, Provenance: facts, Logger: testutil.Logger()}
	if configure != nil {
		configure(&config)
	}
	vat, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return vat, facts
}

// startVat runs vat with a root that idles until stop is called. stop
// returns Run's result.
func startVat(t *testing.T, vat *Vat) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- vat.Run(ctx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	testutil.RequireClosed(t, ready, testTimeout, "vat did not start")
	t.Cleanup(cancel)
	return func() error {
		cancel()
		return testutil.RequireReceive(t, result, testTimeout, "vat did not stop")
	}
}

// echo replies to every request with a message of type "echo" that
// carries the request's "text" attribute.
func echo(ctx context.Context) error {
	for {
		request, err := Receive(ctx)
		if err != nil {
			return err
		}
		response := document.Reply(request, "echo").With("text", request.Text("text"))
		for _, replyTo := range request.ReplyTo {
			if err := Send(ctx, replyTo, response); err != nil {
				return err
			}
		}
	}
}

// idle blocks until its scope is cancelled.
func idle(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
