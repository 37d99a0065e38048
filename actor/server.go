// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package actor

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/actormesh/lib/document"
	"github.com/bureau-foundation/actormesh/mesh"
)

// Server handles one request at a time. A nil response means there is
// nothing to send back.
type Server interface {
	Handle(ctx context.Context, msg *document.Message) (*document.Message, error)
}

// Initializer is implemented by servers that need to act before the
// first message, for example to announce themselves to another actor.
type Initializer interface {
	Init(ctx context.Context) error
}

// Serve returns a mesh.Func that runs server's message loop until its
// context is cancelled or Handle fails.
func Serve(server Server) mesh.Func {
	return func(ctx context.Context) error {
		if initializer, ok := server.(Initializer); ok {
			if err := initializer.Init(ctx); err != nil {
				return fmt.Errorf("initializing: %w", err)
			}
		}
		for {
			request, err := mesh.Receive(ctx)
			if err != nil {
				return err
			}
			response, err := server.Handle(ctx, request)
			if err != nil {
				return fmt.Errorf("handling %s %s: %w", request.Type, request.ID, err)
			}
			if err := reply(ctx, request, response); err != nil {
				return err
			}
		}
	}
}

// reply sends response to every ReplyTo address of request. A reply
// target that has gone away (a caller that timed out) is skipped: the
// request was answered, there is just nobody left to read it.
func reply(ctx context.Context, request, response *document.Message) error {
	if response == nil || len(request.ReplyTo) == 0 {
		return nil
	}
	if response.IsResponseTo == "" {
		response.IsResponseTo = request.ID
	}
	for _, replyTo := range request.ReplyTo {
		err := mesh.Send(ctx, replyTo, response)
		if errors.Is(err, mesh.ErrUnknownActor) {
			mesh.Current(ctx).Vat().Logger().Debug("reply target is gone",
				"actor", mesh.Self(ctx).String(),
				"reply_to", replyTo.String(),
				"request", request.ID,
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("replying to %s: %w", replyTo, err)
		}
	}
	return nil
}
