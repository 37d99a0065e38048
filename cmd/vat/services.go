// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"maps"
	"time"

	"github.com/bureau-foundation/actormesh/actor"
	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
)

// Built-in service message types.
const (
	echoType         = "echo"
	echoReplyType    = "echo.reply"
	infoType         = "vat.info"
	infoResponseType = "vat.info.response"
)

// echoService answers every echo with a copy of its attributes.
type echoService struct{}

var echoRoutes = actor.NewRoutes(map[string]actor.Handler[*echoService]{
	echoType: (*echoService).echo,
})

func (*echoService) echo(ctx context.Context, msg *document.Message) (*document.Message, error) {
	reply := document.Reply(msg, echoReplyType)
	reply.Attributes = maps.Clone(msg.Attributes)
	return reply, nil
}

// infoService describes the vat it runs in.
type infoService struct {
	vat     *mesh.Vat
	started time.Time
}

var infoRoutes = actor.NewRoutes(map[string]actor.Handler[*infoService]{
	infoType: (*infoService).info,
})

func (s *infoService) info(ctx context.Context, msg *document.Message) (*document.Message, error) {
	return document.Reply(msg, infoResponseType).
		With("vat", s.vat.URI().String()).
		With("actors", s.vat.Len()).
		With("uptime", s.vat.Clock().Now().Sub(s.started).String()).
		With("tree", s.vat.FormatTree()), nil
}

// spawnServices starts the built-in services under a supervisor named
// "services" and returns the supervisor's address.
func spawnServices(ctx context.Context, vat *mesh.Vat) (ref.Address, error) {
	info := &infoService{vat: vat, started: vat.Clock().Now()}
	supervisor, err := actor.NewSupervisor(actor.SupervisorConfig{
		Children: []actor.Child{
			{Name: "echo", Start: actor.Serve(actor.Routed(&echoService{}, echoRoutes)), Restart: actor.Permanent},
			{Name: "info", Start: actor.Serve(actor.Routed(info, infoRoutes)), Restart: actor.Permanent},
		},
		Clock: vat.Clock(),
	})
	if err != nil {
		return ref.Address{}, err
	}
	return supervisor.Spawn(ctx, vat, "services")
}
