// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/lib/testutil"
	"github.com/bureau-foundation/actormesh/mesh"
)

const testTimeout = 5 * time.Second

// testVat is a running vat with an echo actor, served over httptest.
type testVat struct {
	vat     *mesh.Vat
	facts   *provenance.Memory
	handler *JoinHandler
	server  *httptest.Server
	echo    ref.Address
	stop    context.CancelFunc
}

func startTestVat(t *testing.T, configure func(*JoinConfig)) *testVat {
	t.Helper()
	id := newIdentity(t)
	facts := provenance.NewMemory()
	vat, err := mesh.New(mesh.Config{
		Identity:   id,
		RootTrap:   true,
		Provenance: facts,
		Logger:     testutil.Logger(),
	})
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}

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

	echo, err := vat.Spawn(context.Background(), echoActor, mesh.SpawnOptions{Name: "echo"})
	if err != nil {
		t.Fatalf("spawning echo: %v", err)
	}

	config := JoinConfig{Vat: vat, Logger: testutil.Logger()}
	if configure != nil {
		configure(&config)
	}
	handler, err := NewJoinHandler(config)
	if err != nil {
		t.Fatalf("NewJoinHandler: %v", err)
	}
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
		cancel()
		if err := testutil.RequireReceive(t, result, testTimeout, "vat did not stop"); err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	return &testVat{vat: vat, facts: facts, handler: handler, server: server, echo: echo, stop: cancel}
}

func echoActor(ctx context.Context) error {
	for {
		request, err := mesh.Receive(ctx)
		if err != nil {
			return err
		}
		response := document.Reply(request, "echo").With("text", request.Text("text"))
		for _, replyTo := range request.ReplyTo {
			if err := mesh.Send(ctx, replyTo, response); err != nil && !errors.Is(err, mesh.ErrUnknownActor) {
				return err
			}
		}
	}
}

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	if err != nil {
		t.Fatalf("identity.Generate: %v", err)
	}
	return id
}

func joinVat(t *testing.T, tv *testVat, id *identity.Identity) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	session, err := Join(ctx, tv.server.URL, id, SessionOptions{Logger: testutil.Logger()})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

// dialRaw opens a WebSocket to path without running the handshake, so
// tests can speak the protocol frame by frame.
func dialRaw(t *testing.T, tv *testVat, path string) *frameConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tv.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	frames := newFrameConn(conn, DefaultMaxFrameSize)
	frames.setDeadline(time.Now().Add(testTimeout))
	return frames
}

// readFrame reads one frame and fails the test unless it has type want.
func readFrame(t *testing.T, frames *frameConn, want FrameType) Frame {
	t.Helper()
	frame, err := frames.read()
	if err != nil {
		t.Fatalf("reading %s frame: %v", want, err)
	}
	if frame.Type != want {
		t.Fatalf("frame type = %q (error %q), want %q", frame.Type, frame.Error, want)
	}
	return frame
}

// joinRaw completes an authenticated handshake by hand and returns the
// connection positioned after the welcome frame.
func joinRaw(t *testing.T, tv *testVat, id *identity.Identity) (*frameConn, ref.Address) {
	t.Helper()
	frames := dialRaw(t, tv, "/join/"+identity.EncodePublicKey(id.PublicKey()))
	handshake := readFrame(t, frames, FrameHandshake)
	response := Frame{
		Type:      FrameResponse,
		Challenge: handshake.Challenge,
		Signature: id.Sign(peerProof(handshake.Challenge, handshake.Identity)),
	}
	if err := frames.write(response); err != nil {
		t.Fatalf("writing response: %v", err)
	}
	welcome := readFrame(t, frames, FrameWelcome)
	return frames, welcome.Address
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

func endedFact(address ref.Address) func(provenance.Fact) bool {
	return func(fact provenance.Fact) bool {
		return fact.Kind == provenance.ProcessEnded && fact.Object == address
	}
}
