// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/bureau-foundation/actormesh/lib/identity"
	"github.com/bureau-foundation/actormesh/lib/ref"
)

// challengeSize is the size of the random handshake challenge in bytes.
const challengeSize = 32

// DefaultHandshakeTimeout bounds the whole handshake: challenge,
// response, and verification.
const DefaultHandshakeTimeout = 10 * time.Second

// vatProofLabel prefixes the bytes the vat signs, so that the vat's
// handshake signature is never a valid peer response.
const vatProofLabel = "actormesh join vat\x00"

// peerProof is what a joining peer signs: the challenge bound to the
// identity of the vat that issued it.
func peerProof(challenge []byte, vat ref.Address) []byte {
	proof := make([]byte, 0, len(challenge)+len(vat.String()))
	proof = append(proof, challenge...)
	return append(proof, vat.String()...)
}

// vatProof is what the vat signs in its handshake frame.
func vatProof(challenge []byte, vat ref.Address) []byte {
	proof := make([]byte, 0, len(vatProofLabel)+len(challenge)+len(vat.String()))
	proof = append(proof, vatProofLabel...)
	return append(proof, peerProof(challenge, vat)...)
}

// challengePeer runs the vat side of the handshake. A nil claimed key
// is the anonymous variant: the peer must still answer the challenge,
// but its signature is not checked.
func challengePeer(frames *frameConn, vat *identity.Identity, claimed ed25519.PublicKey) error {
	challenge := make([]byte, challengeSize)
	if _, err := rand.Read(challenge); err != nil {
		return fmt.Errorf("generating challenge: %w", err)
	}
	err := frames.write(Frame{
		Type:      FrameHandshake,
		Challenge: challenge,
		Signature: vat.Sign(vatProof(challenge, vat.URI())),
		Identity:  vat.URI(),
		PublicKey: vat.PublicKey(),
	})
	if err != nil {
		return &HandshakeError{Reason: "sending challenge", Err: err}
	}

	response, err := frames.read()
	if err != nil {
		return &HandshakeError{Reason: "reading response", Err: err}
	}
	switch response.Type {
	case FrameResponse:
	case FrameError:
		return &HandshakeError{Reason: "peer aborted: " + response.Error}
	default:
		return &HandshakeError{Reason: fmt.Sprintf("expected %s frame, got %s", FrameResponse, response.Type)}
	}
	if !bytes.Equal(response.Challenge, challenge) {
		return &HandshakeError{Reason: "response answers a different challenge"}
	}
	if claimed == nil {
		return nil
	}
	if !identity.Verify(peerProof(challenge, vat.URI()), response.Signature, claimed) {
		return &HandshakeError{Reason: "peer response", Err: ErrInvalidSignature}
	}
	return nil
}

// answerChallenge runs the peer side of the handshake and returns the
// vat's verified identity. A nil id answers anonymously. A non-nil
// pinned key must match the vat's key exactly.
func answerChallenge(frames *frameConn, id *identity.Identity, pinned ed25519.PublicKey) (ref.Address, ed25519.PublicKey, error) {
	handshake, err := frames.read()
	if err != nil {
		return ref.Address{}, nil, &HandshakeError{Reason: "reading challenge", Err: err}
	}
	switch handshake.Type {
	case FrameHandshake:
	case FrameError:
		return ref.Address{}, nil, &HandshakeError{Reason: "vat refused: " + handshake.Error}
	default:
		return ref.Address{}, nil, &HandshakeError{Reason: fmt.Sprintf("expected %s frame, got %s", FrameHandshake, handshake.Type)}
	}
	if len(handshake.Challenge) != challengeSize {
		return ref.Address{}, nil, &HandshakeError{Reason: fmt.Sprintf("challenge is %d bytes, want %d", len(handshake.Challenge), challengeSize)}
	}

	vatKey := ed25519.PublicKey(handshake.PublicKey)
	vatURI, err := identity.URI(vatKey)
	if err != nil {
		return ref.Address{}, nil, &HandshakeError{Reason: "vat public key", Err: err}
	}
	if vatURI != handshake.Identity {
		return ref.Address{}, nil, &HandshakeError{Reason: fmt.Sprintf("vat claims identity %s but its key derives %s", handshake.Identity, vatURI)}
	}
	if pinned != nil && !bytes.Equal(pinned, vatKey) {
		return ref.Address{}, nil, &HandshakeError{Reason: "vat key does not match the pinned key " + identity.EncodePublicKey(pinned)}
	}
	if !identity.Verify(vatProof(handshake.Challenge, vatURI), handshake.Signature, vatKey) {
		return ref.Address{}, nil, &HandshakeError{Reason: "vat handshake", Err: ErrInvalidSignature}
	}

	response := Frame{Type: FrameResponse, Challenge: handshake.Challenge}
	if id != nil {
		response.Signature = id.Sign(peerProof(handshake.Challenge, vatURI))
	}
	if err := frames.write(response); err != nil {
		return ref.Address{}, nil, &HandshakeError{Reason: "sending response", Err: err}
	}
	return vatURI, vatKey, nil
}
