// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/testutil"
)

func TestProofsAreDomainSeparated(t *testing.T) {
	vat := newIdentity(t)
	challenge := bytes.Repeat([]byte{7}, challengeSize)

	vatSide := vatProof(challenge, vat.URI())
	peerSide := peerProof(challenge, vat.URI())
	if bytes.Equal(vatSide, peerSide) {
		t.Fatal("vat and peer proofs are identical")
	}
	if identity.Verify(peerSide, vat.Sign(vatSide), vat.PublicKey()) {
		t.Error("vat handshake signature verifies as a peer response")
	}

	other := newIdentity(t)
	if bytes.Equal(peerProof(challenge, vat.URI()), peerProof(challenge, other.URI())) {
		t.Error("peer proof does not bind the vat identity")
	}
}

// fakeVat serves one WebSocket connection and hands the handshake frame
// produced by forge to the client.
func fakeVat(t *testing.T, forge func(vat *identity.Identity, challenge []byte) Frame) string {
	t.Helper()
	vat := newIdentity(t)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		frames := newFrameConn(conn, DefaultMaxFrameSize)
		defer conn.Close()
		challenge := bytes.Repeat([]byte{1}, challengeSize)
		frames.write(forge(vat, challenge))
		frames.read()
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestJoinVerifiesVat(t *testing.T) {
	stranger := newIdentity(t)
	tests := []struct {
		name   string
		forge  func(vat *identity.Identity, challenge []byte) Frame
		reason string
	}{
		{
			name: "identity does not match key",
			forge: func(vat *identity.Identity, challenge []byte) Frame {
				return Frame{
					Type:      FrameHandshake,
					Challenge: challenge,
					Signature: vat.Sign(vatProof(challenge, vat.URI())),
					Identity:  stranger.URI(),
					PublicKey: vat.PublicKey(),
				}
			},
			reason: "derives",
		},
		{
			name: "signature by another key",
			forge: func(vat *identity.Identity, challenge []byte) Frame {
				return Frame{
					Type:      FrameHandshake,
					Challenge: challenge,
					Signature: stranger.Sign(vatProof(challenge, vat.URI())),
					Identity:  vat.URI(),
					PublicKey: vat.PublicKey(),
				}
			},
			reason: ErrInvalidSignature.Error(),
		},
		{
			name: "short challenge",
			forge: func(vat *identity.Identity, challenge []byte) Frame {
				return Frame{Type: FrameHandshake, Challenge: challenge[:4], Identity: vat.URI(), PublicKey: vat.PublicKey()}
			},
			reason: "challenge is 4 bytes",
		},
		{
			name: "refusal",
			forge: func(*identity.Identity, []byte) Frame {
				return Frame{Type: FrameError, Error: "go away"}
			},
			reason: "go away",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			url := fakeVat(t, test.forge)
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()
			_, err := Join(ctx, url, newIdentity(t), SessionOptions{Logger: testutil.Logger()})
			if !errors.Is(err, ErrHandshakeFailed) {
				t.Fatalf("Join = %v, want handshake failure", err)
			}
			if !strings.Contains(err.Error(), test.reason) {
				t.Errorf("Join error %q does not mention %q", err, test.reason)
			}
		})
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"ws://host:1", "ws://host:1/join"},
		{"http://host:1/", "ws://host:1/join"},
		{"https://host", "wss://host/join"},
		{"wss://host", "wss://host/join"},
	}
	for _, test := range tests {
		got, err := websocketURL(test.endpoint, "/join")
		if err != nil {
			t.Errorf("websocketURL(%q): %v", test.endpoint, err)
			continue
		}
		if got != test.want {
			t.Errorf("websocketURL(%q) = %q, want %q", test.endpoint, got, test.want)
		}
	}
	if _, err := websocketURL("host:1", "/join"); err == nil {
		t.Error("websocketURL without scheme succeeded")
	}
}
