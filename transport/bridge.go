// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/actormesh/lib/netutil"
	"github.com/bureau-foundation/actormesh/lib/provenance"
	"github.com/bureau-foundation/actormesh/lib/ref"
	"github.com/bureau-foundation/actormesh/mesh"
)

// bridge returns the peer actor's body. The actor relays its mailbox
// to the connection and the connection's message frames into the vat.
// Connection problems end the session but never the vat, so the body
// always returns nil.
func (h *JoinHandler) bridge(frames *frameConn, s *session, finished chan<- struct{}) mesh.Func {
	return func(ctx context.Context) error {
		defer close(finished)
		peer := mesh.Self(ctx)
		h.setSession(s, Bridging, peer)

		vatURI := h.vat.URI()
		h.vat.Emit(provenance.PeerJoined, peer, vatURI, map[string]string{
			"session": s.info.ID,
			"mode":    s.info.Mode,
			"remote":  s.info.Remote,
		})
		logger := h.logger.With("session", s.info.ID, "peer", peer.String())
		logger.Info("peer joined", "mode", s.info.Mode, "remote", s.info.Remote)

		err := h.relay(ctx, frames, peer)

		reason := "closed"
		if err != nil {
			reason = err.Error()
		}
		h.vat.Emit(provenance.PeerLeft, peer, vatURI, map[string]string{
			"session": s.info.ID,
			"reason":  reason,
		})
		switch {
		case err == nil, errors.Is(err, context.Canceled), netutil.IsExpectedCloseError(err):
			logger.Info("peer left")
		case errors.Is(err, ErrMalformedFrame):
			logger.Warn("closed session after malformed frame", "error", err)
		default:
			logger.Warn("peer session failed", "error", err)
		}
		return nil
	}
}

// relay sends the welcome frame and then runs the two directions until
// either fails or ctx ends.
func (h *JoinHandler) relay(ctx context.Context, frames *frameConn, peer ref.Address) error {
	welcome := Frame{Type: FrameWelcome, Address: peer, Directory: h.directory()}
	if err := frames.write(welcome); err != nil {
		frames.conn.Close()
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(groupCtx, func() {
		frames.close(websocket.CloseGoingAway, "session ending")
	})
	defer stop()
	group.Go(func() error { return h.outbound(groupCtx, frames, peer) })
	group.Go(func() error { return h.inbound(groupCtx, frames) })
	return group.Wait()
}

// outbound forwards the peer actor's mailbox over the connection.
func (h *JoinHandler) outbound(ctx context.Context, frames *frameConn, peer ref.Address) error {
	for {
		msg, err := mesh.Receive(ctx)
		if err != nil {
			return err
		}
		if err := frames.write(Frame{Type: FrameMessage, To: peer, Message: msg}); err != nil {
			return err
		}
	}
}

// inbound handles frames from the peer: heartbeats are answered, and
// messages are delivered to their local targets.
func (h *JoinHandler) inbound(ctx context.Context, frames *frameConn) error {
	for {
		frame, err := frames.read()
		if err != nil {
			var malformed *MalformedFrameError
			if errors.As(err, &malformed) {
				frames.fail(websocket.CloseUnsupportedData, malformed.Error())
			}
			return err
		}

		switch frame.Type {
		case FrameHeartbeat:
			ack := Frame{
				Type:      FrameHeartbeatAck,
				ID:        frame.ID,
				Timestamp: h.vat.Clock().Now().UnixNano(),
			}
			if err := frames.write(ack); err != nil {
				return err
			}

		case FrameMessage:
			if frame.To.IsZero() || frame.Message == nil {
				return h.reject(frames, "message frame needs both to and message")
			}
			if err := frame.Message.Validate(); err != nil {
				return h.reject(frames, err.Error())
			}
			err := h.vat.Send(ctx, frame.To, frame.Message)
			if errors.Is(err, mesh.ErrUnknownActor) {
				if err := frames.write(Frame{Type: FrameError, ID: frame.Message.ID, Error: err.Error()}); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

		case FrameError:
			h.logger.Debug("peer reported error", "error", frame.Error)

		default:
			return h.reject(frames, fmt.Sprintf("unexpected %s frame while bridging", frame.Type))
		}
	}
}

func (h *JoinHandler) reject(frames *frameConn, reason string) error {
	err := &MalformedFrameError{Reason: reason}
	frames.fail(websocket.CloseUnsupportedData, err.Error())
	return err
}

// directory lists the vat's long-lived addresses for the welcome frame.
// Call sinks come and go too quickly to be worth advertising.
func (h *JoinHandler) directory() []ref.Address {
	var addresses []ref.Address
	for _, address := range h.vat.Addresses() {
		if address.Kind() == ref.KindCall {
			continue
		}
		addresses = append(addresses, address)
	}
	return addresses
}
