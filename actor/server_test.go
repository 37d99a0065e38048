// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/lib/testutil"
	"github.com/bureau-foundation/actormesh/mesh"
)

// counter is a small stateful server used across the tests.
type counter struct {
	value     int64
	announce  ref.Address
	announced bool
}

var counterRoutes = NewRoutes(map[string]Handler[*counter]{
	"counter.increment": (*counter).increment,
	"counter.read":      (*counter).read,
	"counter.fail":      (*counter).fail,
})

func (c *counter) Init(ctx context.Context) error {
	if c.announce.IsZero() {
		return nil
	}
	c.announced = true
	return mesh.Send(ctx, c.announce, document.New("counter.ready").With("counter", mesh.Self(ctx)))
}

func (c *counter) increment(ctx context.Context, msg *document.Message) (*document.Message, error) {
	by, ok := msg.Int("by")
	if !ok {
		by = 1
	}
	c.value += by
	return nil, nil
}

func (c *counter) read(ctx context.Context, msg *document.Message) (*document.Message, error) {
	return document.Reply(msg, "counter.value").With("value", c.value), nil
}

func (c *counter) fail(ctx context.Context, msg *document.Message) (*document.Message, error) {
	return nil, errors.New("asked to fail")
}

func TestRoutedServer(t *testing.T) {
	vat, _, _ := runTrappingVat(t)
	address, err := vat.Spawn(context.Background(), Serve(Routed(&counter{}, counterRoutes)), mesh.SpawnOptions{Name: "counter"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := vat.Send(context.Background(), address, document.New("counter.increment").With("by", 2)); err != nil {
			t.Fatal(err)
		}
	}
	request := document.New("counter.read")
	response, err := vat.Call(context.Background(), address, request)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if response.IsResponseTo != request.ID {
		t.Errorf("IsResponseTo = %q, want %q", response.IsResponseTo, request.ID)
	}
	if value, _ := response.Int("value"); value != 6 {
		t.Errorf("value = %d, want 6", value)
	}
}

func TestServeRepliesToEveryReplyTo(t *testing.T) {
	vat, _, _ := runTrappingVat(t)
	address, err := vat.Spawn(context.Background(), Serve(Routed(&counter{value: 9}, counterRoutes)), mesh.SpawnOptions{})
	if err != nil {
		t.Fatal(err)
	}
	first, err := vat.Register(context.Background(), mesh.RegisterOptions{Kind: ref.KindCall})
	if err != nil {
		t.Fatal(err)
	}
	defer vat.Deregister(first.Address())
	second, err := vat.Register(context.Background(), mesh.RegisterOptions{Kind: ref.KindCall})
	if err != nil {
		t.Fatal(err)
	}
	// The second sink is gone before the reply: the server must skip it.
	vat.Deregister(second.Address())

	request := document.New("counter.read")
	request.ReplyTo = []ref.Address{second.Address(), first.Address()}
	if err := vat.Send(context.Background(), address, request); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	response, err := first.Next(ctx)
	if err != nil {
		t.Fatalf("waiting for reply: %v", err)
	}
	if value, _ := response.Int("value"); value != 9 {
		t.Errorf("value = %d, want 9", value)
	}
	if !vat.Lookup(address) {
		t.Error("server exited after replying to a departed sink")
	}
}

func TestInitRunsBeforeFirstMessage(t *testing.T) {
	vat, _, _ := runTrappingVat(t)
	listener, err := vat.Register(context.Background(), mesh.RegisterOptions{Kind: ref.KindCall, Name: "listener"})
	if err != nil {
		t.Fatal(err)
	}
	defer vat.Deregister(listener.Address())

	server := &counter{announce: listener.Address()}
	address, err := vat.Spawn(context.Background(), Serve(Routed(server, counterRoutes)), mesh.SpawnOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	announcement, err := listener.Next(ctx)
	if err != nil {
		t.Fatalf("waiting for announcement: %v", err)
	}
	if got, err := announcement.Address("counter"); err != nil || got != address {
		t.Errorf("announced %v (%v), want %s", got, err, address)
	}
}

func TestHandlerErrorCrashesServer(t *testing.T) {
	vat, _, exits := runTrappingVat(t)
	address, err := vat.Spawn(context.Background(), Serve(Routed(&counter{}, counterRoutes)), mesh.SpawnOptions{Name: "fragile"})
	if err != nil {
		t.Fatal(err)
	}
	if err := vat.Send(context.Background(), address, document.New("counter.fail")); err != nil {
		t.Fatal(err)
	}
	exit := testutil.RequireReceive(t, exits, testTimeout, "exit notice")
	if exit.Child != address || !strings.Contains(exit.Reason, "asked to fail") {
		t.Errorf("exit = %+v", exit)
	}
}

func TestUnrecognizedMessageType(t *testing.T) {
	_, err := counterRoutes.Dispatch(&counter{}, context.Background(), document.New("counter.explode"))
	var unrecognized *UnrecognizedMessageTypeError
	if !errors.As(err, &unrecognized) || unrecognized.Type != "counter.explode" {
		t.Fatalf("Dispatch = %v, want UnrecognizedMessageTypeError", err)
	}
	if !errors.Is(err, ErrUnrecognizedMessageType) {
		t.Error("error does not match ErrUnrecognizedMessageType")
	}

	vat, _, exits := runTrappingVat(t)
	address, err := vat.Spawn(context.Background(), Serve(Routed(&counter{}, counterRoutes)), mesh.SpawnOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := vat.Send(context.Background(), address, document.New("counter.explode")); err != nil {
		t.Fatal(err)
	}
	exit := testutil.RequireReceive(t, exits, testTimeout, "exit notice")
	if !strings.Contains(exit.Reason, "unrecognized message type") {
		t.Errorf("exit reason = %q", exit.Reason)
	}
}

func TestRoutesTypes(t *testing.T) {
	got := strings.Join(counterRoutes.Types(), ",")
	if got != "counter.fail,counter.increment,counter.read" {
		t.Errorf("Types() = %s", got)
	}
}

func TestNewRoutesPanicsOnNilHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRoutes accepted a nil handler")
		}
	}()
	NewRoutes(map[string]Handler[*counter]{"x": nil})
}
