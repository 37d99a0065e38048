// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// scheme prefixes every address.
const scheme = "vat:"

// vatDigestLength is the number of hex digits in a vat identity: a
// 32-byte digest of the vat's public key.
const vatDigestLength = 64

// maxIDLength bounds the final path segment. A multibase base32
// Ed25519 key is 53 characters; a UUID is 36.
const maxIDLength = 128

// Kind identifies what an address names within its vat.
type Kind string

const (
	// KindVat is the vat itself. The vat's root actor uses this address.
	KindVat Kind = ""
	// KindActor is a locally spawned actor.
	KindActor Kind = "actor"
	// KindProc is a single incarnation of an actor. A restarted actor
	// keeps its actor address and receives a new proc address.
	KindProc Kind = "proc"
	// KindPeer is a remote party admitted through the authenticated
	// join handshake. The ID is derived from its public key.
	KindPeer Kind = "peer"
	// KindAnonymous is a remote party admitted without identity
	// verification. The ID is minted locally and carries no guarantee.
	KindAnonymous Kind = "anon"
	// KindCall is the temporary response sink for one request/response
	// exchange.
	KindCall Kind = "call"
)

// valid reports whether k is one of the defined child kinds.
func (k Kind) valid() bool {
	switch k {
	case KindActor, KindProc, KindPeer, KindAnonymous, KindCall:
		return true
	}
	return false
}

// Address is a validated mesh address. The zero value is not a valid
// address; use [IsZero] to check for it.
type Address struct {
	uri  string
	vat  string // hex digest, pre-computed
	kind Kind
	id   string
}

// NewVat returns the address of the vat whose identity digest is the
// given lowercase hex string.
func NewVat(digest string) (Address, error) {
	if err := validateDigest(digest); err != nil {
		return Address{}, fmt.Errorf("invalid vat address: %w", err)
	}
	return Address{uri: scheme + digest, vat: digest}, nil
}

// Child returns the address of kind under the vat that owns a. The id
// must be non-empty and use only lowercase letters, digits, and '-'.
func (a Address) Child(kind Kind, id string) (Address, error) {
	if a.IsZero() {
		return Address{}, fmt.Errorf("invalid %s address: parent is zero-value", kind)
	}
	if !kind.valid() {
		return Address{}, fmt.Errorf("invalid address kind %q", kind)
	}
	if err := validateID(id); err != nil {
		return Address{}, fmt.Errorf("invalid %s address: %w", kind, err)
	}
	return Address{
		uri:  scheme + a.vat + "/" + string(kind) + "/" + id,
		vat:  a.vat,
		kind: kind,
		id:   id,
	}, nil
}

// MustChild is like Child but panics on error. Use it only with ids
// produced by code that already guarantees the format (UUIDs).
func (a Address) MustChild(kind Kind, id string) Address {
	child, err := a.Child(kind, id)
	if err != nil {
		panic(err)
	}
	return child
}

// Parse parses the canonical URI form of an address.
func Parse(text string) (Address, error) {
	rest, ok := strings.CutPrefix(text, scheme)
	if !ok {
		return Address{}, fmt.Errorf("invalid address %q: missing %q scheme", text, scheme)
	}
	digest, path, hasPath := strings.Cut(rest, "/")
	vat, err := NewVat(digest)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", text, err)
	}
	if !hasPath {
		return vat, nil
	}
	kind, id, ok := strings.Cut(path, "/")
	if !ok {
		return Address{}, fmt.Errorf("invalid address %q: expected <kind>/<id> after vat", text)
	}
	address, err := vat.Child(Kind(kind), id)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", text, err)
	}
	return address, nil
}

// Vat returns the address of the vat that owns a.
func (a Address) Vat() Address {
	if a.IsZero() {
		return Address{}
	}
	return Address{uri: scheme + a.vat, vat: a.vat}
}

// Kind returns what the address names.
func (a Address) Kind() Kind { return a.kind }

// ID returns the final path segment, or "" for a vat address.
func (a Address) ID() string { return a.id }

// IsVat reports whether a names a vat (and its root actor).
func (a Address) IsVat() bool { return !a.IsZero() && a.kind == KindVat }

// IsZero reports whether a is the uninitialized zero value.
func (a Address) IsZero() bool { return a.uri == "" }

// String returns the canonical URI.
func (a Address) String() string { return a.uri }

// Short returns a compact form for logs and tree rendering: the first
// eight digest characters followed by the kind and a truncated id.
func (a Address) Short() string {
	if a.IsZero() {
		return "<none>"
	}
	short := a.vat[:8]
	if a.kind == KindVat {
		return scheme + short
	}
	id := a.id
	if len(id) > 8 {
		id = id[:8]
	}
	return scheme + short + "/" + string(a.kind) + "/" + id
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.uri), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// decodes to the zero value so optional fields round-trip.
func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func validateDigest(digest string) error {
	if len(digest) != vatDigestLength {
		return fmt.Errorf("digest has %d characters, want %d", len(digest), vatDigestLength)
	}
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return fmt.Errorf("digest contains %q at position %d (want lowercase hex)", c, i)
		}
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("id has %d characters, maximum is %d", len(id), maxIDLength)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
			return fmt.Errorf("id contains %q at position %d", c, i)
		}
	}
	return nil
}
