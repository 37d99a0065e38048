// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/actormesh/lib/ref"
)

// idPrefix makes message IDs URNs.
const idPrefix = "urn:uuid:"

// Message is the envelope for everything delivered to a mailbox.
type Message struct {
	ID           string         `cbor:"id"`
	Type         string         `cbor:"type"`
	ReplyTo      []ref.Address  `cbor:"reply_to,omitempty"`
	IsResponseTo string         `cbor:"is_response_to,omitempty"`
	Attributes   map[string]any `cbor:"attributes,omitempty"`
}

// New returns a message of the given type with a fresh ID.
func New(messageType string) *Message {
	return &Message{ID: NewID(), Type: messageType}
}

// NewID returns a fresh message ID.
func NewID() string {
	return idPrefix + uuid.NewString()
}

// Reply returns a response to request with the given type. The
// response's IsResponseTo is the request's ID; its ReplyTo is empty.
func Reply(request *Message, messageType string) *Message {
	response := New(messageType)
	response.IsResponseTo = request.ID
	return response
}

// With sets an attribute and returns m for chaining. Use it only while
// building a message, before it is sent.
func (m *Message) With(key string, value any) *Message {
	if m.Attributes == nil {
		m.Attributes = make(map[string]any)
	}
	m.Attributes[key] = value
	return m
}

// Clone returns a copy of m whose ReplyTo and Attributes can be
// modified without affecting m. Attribute values are not deep-copied.
func (m *Message) Clone() *Message {
	clone := *m
	clone.ReplyTo = slices.Clone(m.ReplyTo)
	if m.Attributes != nil {
		clone.Attributes = maps.Clone(m.Attributes)
	}
	return &clone
}

// Validate checks the fields the mesh relies on.
func (m *Message) Validate() error {
	if m == nil {
		return errors.New("message is nil")
	}
	if m.ID == "" {
		return errors.New("message has no id")
	}
	if m.Type == "" {
		return fmt.Errorf("message %s has no type", m.ID)
	}
	for i, address := range m.ReplyTo {
		if address.IsZero() {
			return fmt.Errorf("message %s has an empty reply_to at index %d", m.ID, i)
		}
	}
	return nil
}

// Text returns the attribute as a string, or "" if it is absent or
// not a string.
func (m *Message) Text(key string) string {
	value, _ := m.Attributes[key].(string)
	return value
}

// Address returns the attribute as an address. Attributes set locally
// hold a ref.Address; attributes decoded from the wire hold its text.
func (m *Message) Address(key string) (ref.Address, error) {
	switch value := m.Attributes[key].(type) {
	case ref.Address:
		return value, nil
	case string:
		return ref.Parse(value)
	case nil:
		return ref.Address{}, fmt.Errorf("message %s has no %q attribute", m.ID, key)
	default:
		return ref.Address{}, fmt.Errorf("message %s attribute %q is %T, not an address", m.ID, key, value)
	}
}

// Int returns the attribute as an int64. CBOR decodes non-negative
// integers as uint64, so both are accepted.
func (m *Message) Int(key string) (int64, bool) {
	switch value := m.Attributes[key].(type) {
	case int:
		return int64(value), true
	case int64:
		return value, true
	case uint64:
		return int64(value), true
	}
	return 0, false
}

// Time returns a timestamp attribute stored as Unix nanoseconds.
func (m *Message) Time(key string) (time.Time, bool) {
	nanoseconds, ok := m.Int(key)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, nanoseconds).UTC(), true
}
