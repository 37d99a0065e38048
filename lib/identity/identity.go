// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/actormesh/lib/ref"
)

// vatDomainKey separates vat identity hashes from any other BLAKE3 use
// of the same key bytes. ASCII "actormesh.vat.identity", zero padded.
var vatDomainKey = [32]byte{
	'a', 'c', 't', 'o', 'r', 'm', 'e', 's', 'h', '.', 'v', 'a', 't', '.',
	'i', 'd', 'e', 'n', 't', 'i', 't', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Identity is a vat's signing keypair and the URI derived from it.
type Identity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
	uri     ref.Address
}

// Generate creates a fresh keypair.
func Generate() (*Identity, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return newIdentity(public, private)
}

// FromPrivateKey rebuilds an Identity from a stored private key.
func FromPrivateKey(private ed25519.PrivateKey) (*Identity, error) {
	if len(private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(private), ed25519.PrivateKeySize)
	}
	public, ok := private.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("private key did not yield an Ed25519 public key")
	}
	return newIdentity(public, private)
}

func newIdentity(public ed25519.PublicKey, private ed25519.PrivateKey) (*Identity, error) {
	uri, err := URI(public)
	if err != nil {
		return nil, err
	}
	return &Identity{public: public, private: private, uri: uri}, nil
}

// PublicKey returns the vat's public key.
func (i *Identity) PublicKey() ed25519.PublicKey { return i.public }

// PrivateKey returns the vat's private key. Only the keystore needs it.
func (i *Identity) PrivateKey() ed25519.PrivateKey { return i.private }

// URI returns the vat's identity URI.
func (i *Identity) URI() ref.Address { return i.uri }

// Sign signs data with the vat's private key.
func (i *Identity) Sign(data []byte) []byte {
	return ed25519.Sign(i.private, data)
}

// Verify reports whether signature is a valid signature of data by
// publicKey. It returns false for keys or signatures of the wrong size.
func Verify(data, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, data, signature)
}

// URI derives the identity URI for a vat with the given public key.
func URI(publicKey ed25519.PublicKey) (ref.Address, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return ref.Address{}, fmt.Errorf("public key has %d bytes, want %d", len(publicKey), ed25519.PublicKeySize)
	}
	hasher, err := blake3.NewKeyed(vatDomainKey[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(publicKey)
	return ref.NewVat(hex.EncodeToString(hasher.Sum(nil)))
}

// PeerAddress derives the address under which vat admits the holder of
// publicKey.
func PeerAddress(vat ref.Address, publicKey ed25519.PublicKey) (ref.Address, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return ref.Address{}, fmt.Errorf("public key has %d bytes, want %d", len(publicKey), ed25519.PublicKeySize)
	}
	return vat.Child(ref.KindPeer, EncodePublicKey(publicKey))
}

// EncodePublicKey returns the multibase base32 text form of a public
// key: lowercase, unpadded, prefixed with 'b'. This is the form used in
// join URLs and peer addresses.
func EncodePublicKey(publicKey ed25519.PublicKey) string {
	encoded, err := multibase.Encode(multibase.Base32, publicKey)
	if err != nil {
		// Base32 is a built-in encoding; Encode only fails for unknown ones.
		panic("identity: multibase base32 encoding failed: " + err.Error())
	}
	return encoded
}

// ParsePublicKey parses a public key from a join URL. It accepts any
// multibase encoding (typically base32 'b...' or base16 'f...') and
// bare 64-digit hex.
func ParsePublicKey(text string) (ed25519.PublicKey, error) {
	var raw []byte
	if len(text) == 2*ed25519.PublicKeySize {
		decoded, err := hex.DecodeString(text)
		if err == nil {
			raw = decoded
		}
	}
	if raw == nil {
		_, decoded, err := multibase.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("decoding public key %q: %w", text, err)
		}
		raw = decoded
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key has %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}
