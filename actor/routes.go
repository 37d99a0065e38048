// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"context"
	"fmt"
	"sort"

	"github.com/bureau-foundation/actormesh/lib/document"
)

// Handler handles one message type for a server of type S. Method
// expressions fit directly:
//
//	var counterRoutes = actor.NewRoutes(map[string]actor.Handler[*Counter]{
//		"counter.increment": (*Counter).increment,
//		"counter.read":      (*Counter).read,
//	})
type Handler[S any] func(server S, ctx context.Context, msg *document.Message) (*document.Message, error)

// Routes maps message types to handlers. It is immutable once built.
type Routes[S any] struct {
	handlers map[string]Handler[S]
}

// NewRoutes builds a dispatch table. It panics on an empty type or a
// nil handler: tables are package-level values and a bad one is a
// programming error.
func NewRoutes[S any](handlers map[string]Handler[S]) *Routes[S] {
	table := make(map[string]Handler[S], len(handlers))
	for messageType, handler := range handlers {
		if messageType == "" {
			panic("actor: route with an empty message type")
		}
		if handler == nil {
			panic(fmt.Sprintf("actor: route %q has a nil handler", messageType))
		}
		table[messageType] = handler
	}
	return &Routes[S]{handlers: table}
}

// Dispatch calls the handler for msg's type.
func (r *Routes[S]) Dispatch(server S, ctx context.Context, msg *document.Message) (*document.Message, error) {
	handler, ok := r.handlers[msg.Type]
	if !ok {
		return nil, &UnrecognizedMessageTypeError{Type: msg.Type, MessageID: msg.ID}
	}
	return handler(server, ctx, msg)
}

// Types returns the routed message types, sorted.
func (r *Routes[S]) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for messageType := range r.handlers {
		types = append(types, messageType)
	}
	sort.Strings(types)
	return types
}

// Routed adapts server and its routes to Server. If server implements
// Initializer, so does the result.
func Routed[S any](server S, routes *Routes[S]) Server {
	routed := routedServer[S]{server: server, routes: routes}
	if initializer, ok := any(server).(Initializer); ok {
		return routedInitializer[S]{routedServer: routed, initializer: initializer}
	}
	return routed
}

type routedServer[S any] struct {
	server S
	routes *Routes[S]
}

func (r routedServer[S]) Handle(ctx context.Context, msg *document.Message) (*document.Message, error) {
	return r.routes.Dispatch(r.server, ctx, msg)
}

type routedInitializer[S any] struct {
	routedServer[S]
	initializer Initializer
}

func (r routedInitializer[S]) Init(ctx context.Context) error {
	return r.initializer.Init(ctx)
}
